// Package venue holds the static boat-race venue table and race constants.
package venue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Race constants shared by the fetcher, scoring engine and store.
const (
	LanesPerRace  = 6
	MinRaceNumber = 1
	MaxRaceNumber = 12
	VenueCount    = 24
)

// Venue is one of the 24 boat-race stadiums.
type Venue struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
	Region string `json:"region"`
}

// Code returns the two-digit venue code used in race keys, e.g. "04".
func (v Venue) Code() string {
	return fmt.Sprintf("%02d", v.ID)
}

var venues = map[int]Venue{
	1:  {ID: 1, Name: "桐生", NameEn: "Kiryu", Region: "Kanto"},
	2:  {ID: 2, Name: "戸田", NameEn: "Toda", Region: "Kanto"},
	3:  {ID: 3, Name: "江戸川", NameEn: "Edogawa", Region: "Kanto"},
	4:  {ID: 4, Name: "平和島", NameEn: "Heiwajima", Region: "Kanto"},
	5:  {ID: 5, Name: "多摩川", NameEn: "Tamagawa", Region: "Kanto"},
	6:  {ID: 6, Name: "浜名湖", NameEn: "Hamanako", Region: "Tokai"},
	7:  {ID: 7, Name: "蒲郡", NameEn: "Gamagori", Region: "Tokai"},
	8:  {ID: 8, Name: "常滑", NameEn: "Tokoname", Region: "Tokai"},
	9:  {ID: 9, Name: "津", NameEn: "Tsu", Region: "Tokai"},
	10: {ID: 10, Name: "三国", NameEn: "Mikuni", Region: "Kinki"},
	11: {ID: 11, Name: "びわこ", NameEn: "Biwako", Region: "Kinki"},
	12: {ID: 12, Name: "住之江", NameEn: "Suminoe", Region: "Kinki"},
	13: {ID: 13, Name: "尼崎", NameEn: "Amagasaki", Region: "Kinki"},
	14: {ID: 14, Name: "鳴門", NameEn: "Naruto", Region: "Shikoku"},
	15: {ID: 15, Name: "丸亀", NameEn: "Marugame", Region: "Shikoku"},
	16: {ID: 16, Name: "児島", NameEn: "Kojima", Region: "Chugoku"},
	17: {ID: 17, Name: "宮島", NameEn: "Miyajima", Region: "Chugoku"},
	18: {ID: 18, Name: "徳山", NameEn: "Tokuyama", Region: "Chugoku"},
	19: {ID: 19, Name: "下関", NameEn: "Shimonoseki", Region: "Chugoku"},
	20: {ID: 20, Name: "若松", NameEn: "Wakamatsu", Region: "Kyushu"},
	21: {ID: 21, Name: "芦屋", NameEn: "Ashiya", Region: "Kyushu"},
	22: {ID: 22, Name: "福岡", NameEn: "Fukuoka", Region: "Kyushu"},
	23: {ID: 23, Name: "唐津", NameEn: "Karatsu", Region: "Kyushu"},
	24: {ID: 24, Name: "大村", NameEn: "Omura", Region: "Kyushu"},
}

// Lookup returns the venue with the given id.
func Lookup(id int) (Venue, bool) {
	v, ok := venues[id]
	return v, ok
}

// IsValid reports whether id is one of the known venues.
func IsValid(id int) bool {
	_, ok := venues[id]
	return ok
}

// Name returns the venue name, or "不明" for unknown ids.
func Name(id int) string {
	if v, ok := venues[id]; ok {
		return v.Name
	}
	return "不明"
}

// Parse accepts a numeric id ("4", "04") or a Japanese/English venue name.
func Parse(s string) (Venue, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		if v, ok := venues[id]; ok {
			return v, nil
		}
		return Venue{}, fmt.Errorf("unknown venue id: %d", id)
	}
	for _, v := range venues {
		if v.Name == s || strings.EqualFold(v.NameEn, s) {
			return v, nil
		}
	}
	return Venue{}, fmt.Errorf("unknown venue: %q", s)
}

// All returns every venue ordered by id.
func All() []Venue {
	out := make([]Venue, 0, len(venues))
	for _, v := range venues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsValidRaceNumber reports whether n is within 1..12.
func IsValidRaceNumber(n int) bool {
	return n >= MinRaceNumber && n <= MaxRaceNumber
}

// IsValidLane reports whether lane is within 1..6.
func IsValidLane(lane int) bool {
	return lane >= 1 && lane <= LanesPerRace
}
