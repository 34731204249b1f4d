// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// EventDateLayout はsetlist.fmの公演日フォーマット（DD-MM-YYYY）。
const EventDateLayout = "02-01-2006"

// Setlist はライブ公演のセットリストを表す。
// Songs は全セット（アンコール含む）の曲名を演奏順に平坦化したもの。
type Setlist struct {
	ID          string   `json:"id"`
	ArtistName  string   `json:"artistName"`
	VenueName   string   `json:"venueName"`
	CityName    string   `json:"cityName"`
	CountryName string   `json:"countryName"`
	EventDate   string   `json:"eventDate"`
	Songs       []string `json:"songs"`
}

// DisplayDate は公演日を "January 2, 2006" 形式で返す。
// 解析できない場合は元の文字列をそのまま返す。
func (s Setlist) DisplayDate() string {
	t, err := time.Parse(EventDateLayout, s.EventDate)
	if err != nil {
		return s.EventDate
	}
	return t.Format("January 2, 2006")
}

// MarshalJSON は公演日の表示用文字列を displayDate として付加する。
func (s Setlist) MarshalJSON() ([]byte, error) {
	type setlistJSON Setlist
	return json.Marshal(struct {
		setlistJSON
		DisplayDate string `json:"displayDate"`
	}{setlistJSON(s), s.DisplayDate()})
}
