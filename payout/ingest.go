/*
ingest.go - Loose source records to strict engine types

PURPOSE:
  Aggregated instances arrive from the point-of-sale side loosely typed:
  numbers as strings, empty strings for nulls, "Yes"/"No" or booleans for
  the contributor flag. Everything is normalized here, once, and malformed
  rows are rejected instead of letting NaN flow into the calculator.

ACCEPTED FORMS (per numeric field):
  12.5, "12.5", "", null
  "" and null mean absent. NaN and Inf are rejected.
*/
package payout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LooseNumber decodes a JSON number, numeric string, empty string or null.
type LooseNumber struct {
	Value float64
	Valid bool
	raw   string
}

func (n *LooseNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = LooseNumber{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = LooseNumber{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Keep the raw text so ingestion can report it with the field name.
		*n = LooseNumber{raw: s}
		return nil
	}
	*n = LooseNumber{Value: v, Valid: true, raw: s}
	return nil
}

func (n LooseNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func Num(v float64) LooseNumber { return LooseNumber{Value: v, Valid: true} }

// LooseFlag decodes "Yes"/"No", true/false or null.
type LooseFlag struct {
	Value string
}

func (f *LooseFlag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		f.Value = ""
	case bool:
		if x {
			f.Value = string(FlagContributor)
		} else {
			f.Value = string(FlagReceiver)
		}
	case string:
		f.Value = strings.TrimSpace(x)
	default:
		f.Value = fmt.Sprint(x)
	}
	return nil
}

func (f LooseFlag) MarshalJSON() ([]byte, error) { return json.Marshal(f.Value) }

// RecordJSON is the wire form of a contributor record.
type RecordJSON struct {
	EmployeeGUID     string      `json:"employeeGuid"`
	EmployeeName     string      `json:"employeeName"`
	JobTitle         string      `json:"jobTitle"`
	IsContributor    LooseFlag   `json:"isContributor"`
	PayoutReceiverID string      `json:"payoutReceiverId"`
	PayoutPercentage LooseNumber `json:"payoutPercentage"`
	TotalSales       LooseNumber `json:"totalSales"`
	NetSales         LooseNumber `json:"netSales"`
	TotalTips        LooseNumber `json:"totalTips"`
	TotalGratuity    LooseNumber `json:"totalGratuity"`
	OverallTips      LooseNumber `json:"overallTips"`
	OverallGratuity  LooseNumber `json:"overallGratuity"`
	HoursWorked      LooseNumber `json:"hoursWorked"`
	InTime           *string     `json:"inTime"`
	OutTime          *string     `json:"outTime"`
}

// InstanceJSON is the wire form of a schedule instance.
type InstanceJSON struct {
	ScheduleID    string       `json:"scheduleId"`
	BusinessDate  string       `json:"businessDate"`
	TotalSales    LooseNumber  `json:"totalSales"`
	NetSales      LooseNumber  `json:"netSales"`
	TotalTips     LooseNumber  `json:"totalTips"`
	TotalGratuity LooseNumber  `json:"totalGratuity"`
	OrderCount    LooseNumber  `json:"orderCount"`
	IsApproved    bool         `json:"isApproved"`
	Contributors  []RecordJSON `json:"contributors"`
}

// ParseInstance decodes and normalizes a JSON instance payload.
func ParseInstance(data []byte) (ScheduleInstance, error) {
	var ij InstanceJSON
	if err := json.Unmarshal(data, &ij); err != nil {
		return ScheduleInstance{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return NormalizeInstance(ij)
}

// NormalizeInstance validates ij into a strict ScheduleInstance.
func NormalizeInstance(ij InstanceJSON) (ScheduleInstance, error) {
	if strings.TrimSpace(ij.ScheduleID) == "" {
		return ScheduleInstance{}, &RecordError{Index: -1, Field: "scheduleId", Reason: "required"}
	}
	date, err := ParseBusinessDate(ij.BusinessDate)
	if err != nil {
		return ScheduleInstance{}, fmt.Errorf("%w: businessDate %q", ErrMissingContext, ij.BusinessDate)
	}

	inst := ScheduleInstance{
		ScheduleID:   ScheduleID(strings.TrimSpace(ij.ScheduleID)),
		BusinessDate: date,
		IsApproved:   ij.IsApproved,
	}

	var f fieldReader
	f.index = -1
	inst.TotalSales = f.amount("totalSales", ij.TotalSales)
	inst.NetSales = f.amount("netSales", ij.NetSales)
	inst.TotalTips = f.amount("totalTips", ij.TotalTips)
	inst.TotalGratuity = f.amount("totalGratuity", ij.TotalGratuity)
	inst.OrderCount = f.count("orderCount", ij.OrderCount)
	if f.err != nil {
		return ScheduleInstance{}, f.err
	}

	inst.Contributors = make([]ContributorRecord, 0, len(ij.Contributors))
	for i, rj := range ij.Contributors {
		rec, err := NormalizeRecord(i, rj)
		if err != nil {
			return ScheduleInstance{}, err
		}
		inst.Contributors = append(inst.Contributors, rec)
	}
	return inst, nil
}

// NormalizeRecord validates one contributor row.
func NormalizeRecord(index int, rj RecordJSON) (ContributorRecord, error) {
	if strings.TrimSpace(rj.EmployeeGUID) == "" {
		return ContributorRecord{}, &RecordError{Index: index, Field: "employeeGuid", Reason: "required"}
	}

	var flag ContributorFlag
	switch strings.ToLower(rj.IsContributor.Value) {
	case "yes", "y", "true":
		flag = FlagContributor
	case "no", "n", "false":
		flag = FlagReceiver
	default:
		return ContributorRecord{}, &RecordError{Index: index, Field: "isContributor", Reason: fmt.Sprintf("expected Yes or No, got %q", rj.IsContributor.Value)}
	}

	f := fieldReader{index: index}
	rec := ContributorRecord{
		EmployeeGUID:     EmployeeGUID(strings.TrimSpace(rj.EmployeeGUID)),
		EmployeeName:     strings.TrimSpace(rj.EmployeeName),
		JobTitle:         strings.TrimSpace(rj.JobTitle),
		IsContributor:    flag,
		PayoutReceiverID: strings.TrimSpace(rj.PayoutReceiverID),
		PayoutPercentage: f.optional("payoutPercentage", rj.PayoutPercentage),
		TotalSales:       f.amount("totalSales", rj.TotalSales),
		NetSales:         f.amount("netSales", rj.NetSales),
		TotalTips:        f.amount("totalTips", rj.TotalTips),
		TotalGratuity:    f.amount("totalGratuity", rj.TotalGratuity),
		OverallTips:      f.optional("overallTips", rj.OverallTips),
		OverallGratuity:  f.optional("overallGratuity", rj.OverallGratuity),
		HoursWorked:      f.optional("hoursWorked", rj.HoursWorked),
		InTime:           f.clock("inTime", rj.InTime),
		OutTime:          f.clock("outTime", rj.OutTime),
	}
	if f.err != nil {
		return ContributorRecord{}, f.err
	}
	if rec.PayoutReceiverID == "" {
		rec.PayoutReceiverID = rec.JobTitle
	}
	if rec.PayoutPercentage != nil && (*rec.PayoutPercentage < 0 || *rec.PayoutPercentage > 100) {
		return ContributorRecord{}, &RecordError{Index: index, Field: "payoutPercentage", Reason: "outside 0-100"}
	}
	if rec.HoursWorked != nil && *rec.HoursWorked < 0 {
		return ContributorRecord{}, &RecordError{Index: index, Field: "hoursWorked", Reason: "negative"}
	}
	return rec, nil
}

// fieldReader keeps the first error so call sites stay flat.
type fieldReader struct {
	index int
	err   error
}

func (f *fieldReader) fail(field, reason string) {
	if f.err == nil {
		f.err = &RecordError{Index: f.index, Field: field, Reason: reason}
	}
}

func (f *fieldReader) optional(field string, n LooseNumber) *float64 {
	if !n.Valid {
		if n.raw != "" {
			f.fail(field, fmt.Sprintf("not a number: %q", n.raw))
		}
		return nil
	}
	if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		f.fail(field, "not a finite number")
		return nil
	}
	v := n.Value
	return &v
}

// amount treats an absent value as zero.
func (f *fieldReader) amount(field string, n LooseNumber) float64 {
	if v := f.optional(field, n); v != nil {
		return *v
	}
	return 0
}

// count reads a non-negative whole number; absent is zero.
func (f *fieldReader) count(field string, n LooseNumber) int {
	v := f.optional(field, n)
	if v == nil {
		return 0
	}
	if *v != math.Trunc(*v) {
		f.fail(field, fmt.Sprintf("not a whole number: %v", *v))
		return 0
	}
	if *v < 0 || *v > math.MaxInt32 {
		f.fail(field, fmt.Sprintf("%v is out of range", *v))
		return 0
	}
	return int(*v)
}

var clockLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

func (f *fieldReader) clock(field string, s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*s)); err == nil {
			return &t
		}
	}
	f.fail(field, fmt.Sprintf("unrecognized timestamp %q", *s))
	return nil
}
