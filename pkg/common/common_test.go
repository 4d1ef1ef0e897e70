package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGenerateWithdrawalCode(t *testing.T) {
	code := GenerateWithdrawalCode()
	assert.Regexp(t, regexp.MustCompile(`^WD[A-Z0-9]{10}$`), code)
	assert.NotEqual(t, code, GenerateWithdrawalCode())
}

func TestGenerateSlug(t *testing.T) {
	slug := GenerateSlug()
	assert.Regexp(t, regexp.MustCompile(`^[a-f0-9]{8}$`), slug)
}

func TestPaginateResponse(t *testing.T) {
	data := []string{"item1", "item2"}

	res := PaginateResponse(data, 100, 1, 10, "")
	assert.Equal(t, "success", res.Message)
	assert.Equal(t, 1, res.CurrentPage)
	assert.Equal(t, 10, res.LastPage)
	assert.Equal(t, 2, res.NextPage)
	assert.Equal(t, 0, res.PrevPage)
	assert.Equal(t, int64(100), res.Count)

	res = PaginateResponse(data, 100, 10, 10, "")
	assert.Equal(t, 0, res.NextPage)

	res = PaginateResponse(data, 100, 5, 10, "")
	assert.Equal(t, 4, res.PrevPage)
	assert.Equal(t, 6, res.NextPage)
}

func TestNormalizePage(t *testing.T) {
	page, perPage, offset := NormalizePage(0, 0)
	assert.Equal(t, []int{1, DefaultPerPage, 0}, []int{page, perPage, offset})

	page, perPage, offset = NormalizePage(3, 500)
	assert.Equal(t, []int{3, MaxPerPage, 200}, []int{page, perPage, offset})
}

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["value"]})
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second)
	ctx := context.Background()

	var out map[string]string
	err := client.PostJSON(ctx, srv.URL+"/ok", map[string]string{"value": "hi"}, map[string]string{"Authorization": "Bearer key"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])

	err = client.GetJSON(ctx, srv.URL+"/broken", nil, &out)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "upstream down", httpErr.Body)
}

type pageRow struct {
	ID    uint
	Owner uint
}

func TestPaginate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&pageRow{}))
	for i := 1; i <= 25; i++ {
		owner := uint(1)
		if i%5 == 0 {
			owner = 2
		}
		require.NoError(t, db.Create(&pageRow{ID: uint(i), Owner: owner}).Error)
	}

	query := db.Model(&pageRow{}).Where("owner = ?", 1)

	first, err := Paginate[pageRow](query, 1, 15, "id DESC", "rows")
	require.NoError(t, err)
	assert.Equal(t, int64(20), first.Count)
	assert.Equal(t, 2, first.LastPage)
	assert.Equal(t, 2, first.NextPage)
	rows := first.Data.([]pageRow)
	require.Len(t, rows, 15)
	assert.Equal(t, uint(24), rows[0].ID)

	second, err := Paginate[pageRow](query, 2, 15, "id DESC", "rows")
	require.NoError(t, err)
	assert.Len(t, second.Data.([]pageRow), 5)
	assert.Equal(t, 0, second.NextPage)

	empty, err := Paginate[pageRow](db.Model(&pageRow{}).Where("owner = ?", 9), 0, 0, "id", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Count)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data.([]pageRow))
}
