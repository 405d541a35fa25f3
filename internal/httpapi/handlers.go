package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/corpus"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/gin-gonic/gin"
)

// Reloader schedules corpus reloads. *corpus.Refresher implements it; Trigger only
// has an effect while its Run loop is running.
type Reloader interface {
	Trigger()
	Status() corpus.ReloadStatus
}

// SuggestResponse is the body of a successful /geocoder call. Size is the number of
// hits asked of the engine after clamping to max_size.
type SuggestResponse struct {
	Hits []suggest.Hit `json:"hits"`
	Size int           `json:"size"`
	Took float64       `json:"took"`
}

type handlers struct {
	engine      suggest.Suggester
	reloader    Reloader
	defaultSize int
	maxSize     int
	maxQueryLen int
}

// geocoder answers GET /geocoder?suggest=true&q=...&size=n
func (h *handlers) geocoder(c *gin.Context) {
	start := time.Now()

	// URL.Query drops pairs it cannot decode; parse strictly instead
	params, err := url.ParseQuery(c.Request.URL.RawQuery)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidArgument, "malformed query string")
		return
	}

	size := h.defaultSize
	if params.Has("size") {
		n, err := strconv.Atoi(params.Get("size"))
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeInvalidArgument, "size must be a positive integer")
			return
		}
		size = min(n, h.maxSize)
	}

	prefix := true
	if params.Has("suggest") {
		b, err := strconv.ParseBool(params.Get("suggest"))
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeInvalidArgument, "suggest must be true or false")
			return
		}
		prefix = b
	}

	q := params.Get("q")
	if err := utils.ValidateQuery(q, h.maxQueryLen); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidArgument, err.Error())
		return
	}

	hits, err := h.engine.Suggest(suggest.Query{Text: q, Size: size, Suggest: prefix})
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, SuggestResponse{
		Hits: hits,
		Size: size,
		Took: float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (h *handlers) health(c *gin.Context) {
	stats := h.engine.Stats()
	if stats["ready"] != 1 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "generation": stats["generation"], "records": stats["records"]})
}

func (h *handlers) stats(c *gin.Context) {
	body := gin.H{"engine": h.engine.Stats()}
	if h.reloader != nil {
		body["reload"] = h.reloader.Status()
	}
	c.JSON(http.StatusOK, body)
}

// reload schedules a corpus reload and answers right away with the outcome of the
// previous one; poll /stats for the result.
func (h *handlers) reload(c *gin.Context) {
	if h.reloader == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeIndexUnavailable, "reloading is not configured")
		return
	}
	h.reloader.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "last": h.reloader.Status()})
}
