package service

import (
	"strings"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
)

// RoomLinks выдаёт ссылки вида <base>/lesson-<random>.
type RoomLinks struct {
	baseURL string
}

func NewRoomLinks(baseURL string) *RoomLinks {
	return &RoomLinks{baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *RoomLinks) NewLink(_ *model.Booking) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return g.baseURL + "/lesson-" + token[:12]
}
