package report

import (
	"strconv"
	"time"
)

// Report names
const (
	JobCardsByStatus   = "jobcards-by-status"
	HoursByTechnician  = "hours-by-technician"
	CheckSheetPassRate = "checksheet-pass-rate"
)

var Names = []string{JobCardsByStatus, HoursByTechnician, CheckSheetPassRate}

type Filter struct {
	CompanyID string    `query:"company_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

type StatusCount struct {
	Status string `json:"status" boil:"status"`
	Count  int    `json:"count" boil:"count"`
}

type TechnicianHours struct {
	TechnicianID   string  `json:"technician_id" boil:"technician_id"`
	TechnicianName string  `json:"technician_name" boil:"technician_name"`
	Entries        int     `json:"entries" boil:"entries"`
	Seconds        int64   `json:"seconds" boil:"seconds"`
	Hours          float64 `json:"hours" boil:"-"`
}

type PassRate struct {
	CheckSheetID string  `json:"check_sheet_id" boil:"check_sheet_id"`
	Title        string  `json:"title" boil:"title"`
	Completions  int     `json:"completions" boil:"completions"`
	Passed       int     `json:"passed" boil:"passed"`
	Rate         float64 `json:"rate" boil:"-"` // percentage
}

// Report is a named table. Data holds the typed rows for JSON output.
type Report struct {
	Name    string      `json:"name"`
	From    *time.Time  `json:"from"`
	To      *time.Time  `json:"to"`
	Columns []string    `json:"-"`
	Rows    [][]string  `json:"-"`
	Data    interface{} `json:"data"`
}

func hours(seconds int64) float64 {
	h, _ := strconv.ParseFloat(strconv.FormatFloat(float64(seconds)/3600, 'f', 2, 64), 64)
	return h
}
