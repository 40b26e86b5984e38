// Package core holds the domain model of tally: the persisted document, its
// stores and the service that applies business rules on top of a Repository.
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mapping is a free-form keyed sub-document (profile, timeline, settings).
type Mapping map[string]any

// Document is the single persisted aggregate. It is always written and read
// as a whole.
type Document struct {
	Accounts []Account `json:"accounts"`
	Profile  Mapping   `json:"profile"`
	Timeline Mapping   `json:"timeline"`
	Goals    []any     `json:"goals"`
	Settings Mapping   `json:"settings"`
}

// NewDocument returns a document with every store present and empty.
func NewDocument() Document {
	return Document{
		Accounts: []Account{},
		Profile:  Mapping{},
		Timeline: Mapping{},
		Goals:    []any{},
		Settings: Mapping{},
	}
}

// Account is the canonical shape of a recurring commitment.
type Account struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Type           string  `json:"type"`
	MonthlyPayment float64 `json:"monthlyPayment"`
	AnnualPayment  float64 `json:"annualPayment"`
	HasReminder    string  `json:"hasReminder"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority"`
	OwnerID        *string `json:"ownerId"`
}

// Card is a profile card. Only the identifying fields are typed; template
// specific fields travel in Extra.
type Card struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	FullName    string         `json:"fullName"`
	Extra       map[string]any `json:"-"`
}

var cardFields = []string{"id", "displayName", "fullName"}

// UnmarshalJSON keeps every field the card template defined.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID, _ = raw["id"].(string)
	c.DisplayName, _ = raw["displayName"].(string)
	c.FullName, _ = raw["fullName"].(string)
	for _, k := range cardFields {
		delete(raw, k)
	}
	c.Extra = nil
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// MarshalJSON writes the typed fields back next to the template fields.
func (c Card) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+len(cardFields))
	for k, v := range c.Extra {
		out[k] = v
	}
	out["id"] = c.ID
	out["displayName"] = c.DisplayName
	out["fullName"] = c.FullName
	return json.Marshal(out)
}

// MonthEntry is one month of the timeline. Balance is never stored.
type MonthEntry struct {
	ID       string  `json:"id"`
	Year     int     `json:"year"`
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	IsLocked bool    `json:"isLocked"`
}

// TimelineData is the value stored under a timeline key.
type TimelineData struct {
	StartingBalance float64      `json:"startingBalance"`
	Months          []MonthEntry `json:"months"`
}

// Goal is a savings target.
type Goal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Target    float64   `json:"target"`
	Current   float64   `json:"current"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoreName identifies one top-level section of the Document.
type StoreName string

const (
	StoreAccounts StoreName = "accounts"
	StoreProfile  StoreName = "profile"
	StoreTimeline StoreName = "timeline"
	StoreGoals    StoreName = "goals"
	StoreSettings StoreName = "settings"
)

// StoreKind tells whether a store is a sequence or a mapping.
type StoreKind int

const (
	KindSequence StoreKind = iota
	KindMapping
)

// StoreSpec describes how a store behaves on write.
type StoreSpec struct {
	Kind StoreKind
	// Keyed stores merge a value under a sub-key instead of replacing the
	// whole mapping when a key is supplied.
	Keyed bool
}

var stores = map[StoreName]StoreSpec{
	StoreAccounts: {Kind: KindSequence},
	StoreProfile:  {Kind: KindMapping, Keyed: true},
	StoreTimeline: {Kind: KindMapping, Keyed: true},
	StoreGoals:    {Kind: KindSequence},
	StoreSettings: {Kind: KindMapping},
}

// StoreNames lists the recognized stores in document order.
var StoreNames = []StoreName{StoreAccounts, StoreProfile, StoreTimeline, StoreGoals, StoreSettings}

// LookupStore resolves a client supplied store name.
func LookupStore(name string) (StoreName, StoreSpec, error) {
	spec, ok := stores[StoreName(name)]
	if !ok {
		return "", StoreSpec{}, fmt.Errorf("%w: %q", ErrUnknownStore, name)
	}
	return StoreName(name), spec, nil
}

// Get returns the value of a store.
func (d Document) Get(name StoreName) any {
	switch name {
	case StoreAccounts:
		return d.Accounts
	case StoreProfile:
		return d.Profile
	case StoreTimeline:
		return d.Timeline
	case StoreGoals:
		return d.Goals
	case StoreSettings:
		return d.Settings
	}
	return nil
}

// EventType represents the type of change observed on the data file.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change of a file in the data directory that tally did
// not make itself.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.ID)
}
