package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type WatchedBookings interface {
	Snapshot(id int64) (booking.Snapshot, bool)
	Snapshots() []booking.Snapshot
	Refresh(id int64) error
}

type BookingList interface {
	Groups(now time.Time) booking.Groups
}

type BookingHandler struct {
	watched WatchedBookings
	list    BookingList
	now     func() time.Time
}

func NewBookingHandler(watched WatchedBookings, list BookingList) *BookingHandler {
	return &BookingHandler{watched: watched, list: list, now: time.Now}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.groups)
	router.GET("/watched", h.watchedList)
	router.GET("/:id", h.get)
	router.POST("/:id/refresh", h.refresh)
}

func (h *BookingHandler) groups(c *gin.Context) {
	if h.list == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking list view is not enabled"})
		return
	}
	c.JSON(http.StatusOK, toGroupsResponse(h.list.Groups(h.now())))
}

func (h *BookingHandler) watchedList(c *gin.Context) {
	snaps := h.watched.Snapshots()
	out := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshotResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	snap, found := h.watched.Snapshot(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking is not watched"})
		return
	}
	c.JSON(http.StatusOK, toSnapshotResponse(snap))
}

func (h *BookingHandler) refresh(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.watched.Refresh(id); err != nil {
		status := http.StatusConflict
		if domain.IsNotFound(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	snap, _ := h.watched.Snapshot(id)
	c.JSON(http.StatusOK, toSnapshotResponse(snap))
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
