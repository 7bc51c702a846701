package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The source system is loose about numeric types: the same money field
// arrives as a number, a quoted number, or null depending on which endpoint
// produced the record. A malformed field decodes to zero instead of failing
// the whole document, matching the absent/null contract.

type cents int64

func (c *cents) UnmarshalJSON(data []byte) error {
	*c = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			return nil
		}
	}
	if v, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*c = cents(v)
		return nil
	}
	if f, err := strconv.ParseFloat(string(data), 64); err == nil {
		*c = cents(f)
	}
	return nil
}

func (p *Part) UnmarshalJSON(data []byte) error {
	type alias Part
	aux := struct {
		*alias
		Cost   cents `json:"cost"`
		Retail cents `json:"retail"`
		Total  cents `json:"total"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Cost = int64(aux.Cost)
	p.Retail = int64(aux.Retail)
	p.Total = int64(aux.Total)
	return nil
}

func (t *Technician) UnmarshalJSON(data []byte) error {
	type alias Technician
	aux := struct {
		*alias
		HourlyRate cents `json:"hourlyRate"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.HourlyRate = int64(aux.HourlyRate)
	return nil
}

func (l *LaborEntry) UnmarshalJSON(data []byte) error {
	type alias LaborEntry
	aux := struct {
		*alias
		Rate cents `json:"rate"`
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.Rate = int64(aux.Rate)
	return nil
}

func (s *Sublet) UnmarshalJSON(data []byte) error {
	type alias Sublet
	aux := struct {
		*alias
		Cost   cents `json:"cost"`
		Retail cents `json:"retail"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Cost = int64(aux.Cost)
	s.Retail = int64(aux.Retail)
	return nil
}

func (f *Fee) UnmarshalJSON(data []byte) error {
	type alias Fee
	aux := struct {
		*alias
		Cap    cents `json:"cap"`
		Amount cents `json:"amount"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.Cap = int64(aux.Cap)
	f.Amount = int64(aux.Amount)
	return nil
}

func (j *Job) UnmarshalJSON(data []byte) error {
	type alias Job
	aux := struct {
		*alias
		Discount      cents `json:"discount"`
		PartsTaxTotal cents `json:"partsTaxTotal"`
		LaborTaxTotal cents `json:"laborTaxTotal"`
		FeesTaxTotal  cents `json:"feesTaxTotal"`
	}{alias: (*alias)(j)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	j.Discount = int64(aux.Discount)
	j.PartsTaxTotal = int64(aux.PartsTaxTotal)
	j.LaborTaxTotal = int64(aux.LaborTaxTotal)
	j.FeesTaxTotal = int64(aux.FeesTaxTotal)
	return nil
}

func (r *RepairOrder) UnmarshalJSON(data []byte) error {
	type alias RepairOrder
	aux := struct {
		*alias
		Tax        cents `json:"tax"`
		Discount   cents `json:"discount"`
		BalanceDue cents `json:"balanceDue"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Tax = int64(aux.Tax)
	r.Discount = int64(aux.Discount)
	r.BalanceDue = int64(aux.BalanceDue)
	return nil
}
