package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is anything a list controller can hold and address by id.
type Record interface {
	RecordID() string
}

// Party references a customer or provider. The API returns either a bare id
// or a populated object, both decode into Party.
type Party struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

func (p *Party) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = Party{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*p = Party{ID: id}
		return nil
	}

	var raw struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ID = raw.MongoID
	if p.ID == "" {
		p.ID = raw.ID
	}
	p.Name = raw.Name
	return nil
}

type Booking struct {
	ID            string    `json:"_id"`
	ServiceTitle  string    `json:"serviceTitle"`
	Customer      Party     `json:"user"`
	CustomerName  string    `json:"customerName,omitempty"`
	Provider      Party     `json:"provider"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	DurationHours int       `json:"durationHours"`
	Address       string    `json:"address"`
	Notes         string    `json:"notes,omitempty"`
	Status        Status    `json:"status"`
	Price         *float64  `json:"price,omitempty"` // set by the provider on completion
	Paid          bool      `json:"paid"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (b Booking) RecordID() string { return b.ID }

// UnmarshalJSON accepts both "_id" and "id" and refuses unknown statuses.
func (b *Booking) UnmarshalJSON(data []byte) error {
	type plain Booking
	var raw struct {
		plain
		AltID  string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	status := StatusPending
	if raw.Status != "" {
		parsed, err := ParseStatus(raw.Status)
		if err != nil {
			return fmt.Errorf("booking %s: %w", raw.plain.ID+raw.AltID, err)
		}
		status = parsed
	}

	*b = Booking(raw.plain)
	if b.ID == "" {
		b.ID = raw.AltID
	}
	b.Status = status
	return nil
}

// CustomerDisplayName prefers the populated customer over the denormalized name.
func (b *Booking) CustomerDisplayName() string {
	if b.Customer.Name != "" {
		return b.Customer.Name
	}
	if b.CustomerName != "" {
		return b.CustomerName
	}
	return "Unknown"
}

func (b *Booking) ProviderDisplayName() string {
	if b.Provider.Name != "" {
		return b.Provider.Name
	}
	return "Unknown"
}

// Clone returns a copy that shares no pointers with b.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.Price != nil {
		price := *b.Price
		c.Price = &price
	}
	return &c
}

// Session is the authenticated viewer as reported by /auth/me.
type Session struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Provider is the public provider profile.
type Provider struct {
	ID         string   `json:"_id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories,omitempty"`
	City       string   `json:"city,omitempty"`
	HourlyRate float64  `json:"hourlyRate,omitempty"`
	Verified   bool     `json:"isProviderVerified"`
	Rating     float64  `json:"rating,omitempty"`
}
