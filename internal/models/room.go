package models

import "time"

// RoomType categorises physical spaces.
type RoomType string

const (
	RoomClassroom  RoomType = "CLASSROOM"
	RoomLaboratory RoomType = "LABORATORY"
	RoomComputer   RoomType = "COMPUTER_LAB"
	RoomAuditorium RoomType = "AUDITORIUM"
	RoomGym        RoomType = "GYM"
	RoomLibrary    RoomType = "LIBRARY"
)

// Room is a physical space referenced, never owned, by schedule entries.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Number    string    `db:"number" json:"number"`
	Type      RoomType  `db:"type" json:"type"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Building  string    `db:"building" json:"building,omitempty"`
	Floor     int       `db:"floor" json:"floor"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter describes query params for listing rooms.
type RoomFilter struct {
	Type       string
	Building   string
	ActiveOnly bool
	Page       int
	PageSize   int
}
