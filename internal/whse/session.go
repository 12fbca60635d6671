package whse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Session is the warehouse session record for one terminal session.
// The execution backend owns every write; a Session is a read-only snapshot
// that is replaced as a whole on reload.
type Session struct {
	sessionID    string
	Date         int
	Time         int
	LoginID      string
	WarehouseID  string
	OrderNumber  string
	BinNumber    string
	PalletNumber string
	CartonNumber string
	Status       string
	Function     string

	classifier Classifier
}

// NewSession builds a record for the given session ID. Fields are filled by the
// persistence layer in a single pass.
func NewSession(sessionID string) *Session {
	return &Session{sessionID: sessionID}
}

// SessionID returns the session identifier
func (s *Session) SessionID() string {
	return s.sessionID
}

// WithClassifier returns a copy of the record that classifies its status with c
func (s *Session) WithClassifier(c Classifier) *Session {
	cp := *s
	cp.classifier = c
	return &cp
}

func (s *Session) conditions() Conditions {
	c := s.classifier
	if c == nil {
		c = defaultClassifier
	}
	return c.Classify(s.Status, s.OrderNumber)
}

// Conditions returns every status condition matched by the record's status
func (s *Session) Conditions() Conditions { return s.conditions() }

func (s *Session) IsOrderFinished() bool      { return s.conditions().Has(OrderFinished) }
func (s *Session) IsOrderExited() bool        { return s.conditions().Has(OrderExited) }
func (s *Session) IsOrderOnHold() bool        { return s.conditions().Has(OrderOnHold) }
func (s *Session) IsOrderVerified() bool      { return s.conditions().Has(OrderVerified) }
func (s *Session) IsOrderInvoiced() bool      { return s.conditions().Has(OrderInvoiced) }
func (s *Session) IsOrderInvalid() bool       { return s.conditions().Has(OrderInvalid) }
func (s *Session) IsUsingWrongFunction() bool { return s.conditions().Has(WrongFunction) }
func (s *Session) HasSucceeded() bool         { return s.conditions().Has(Succeeded) }

// StatusMessage returns a human readable line describing the order status.
// On hold beats verified, verified beats invoiced, invoiced beats invalid.
func (s *Session) StatusMessage() string {
	c := s.conditions()
	switch {
	case c.Has(OrderOnHold):
		return fmt.Sprintf("Order %s is on hold", s.OrderNumber)
	case c.Has(OrderVerified):
		return fmt.Sprintf("Order %s has been verified", s.OrderNumber)
	case c.Has(OrderInvoiced):
		return fmt.Sprintf("Order %s has been invoiced", s.OrderNumber)
	case c.Has(OrderInvalid):
		return fmt.Sprintf("%s is Invalid", s.OrderNumber)
	}
	return ""
}

func (s *Session) HasOrder() bool  { return present(s.OrderNumber) }
func (s *Session) HasBin() bool    { return present(s.BinNumber) }
func (s *Session) HasPallet() bool { return present(s.PalletNumber) }
func (s *Session) HasCarton() bool { return present(s.CartonNumber) }

func present(v string) bool {
	return strings.TrimSpace(v) != ""
}

// FieldAliases maps alternate external field names to canonical record keys
var FieldAliases = map[string]string{
	"sessionID": "sessionid",
	"loginID":   "loginid",
	"whseID":    "whseid",
	"ordn":      "ordernbr",
	"bin":       "binnbr",
	"pallet":    "palletnbr",
	"carton":    "cartonnbr",
}

// CanonicalField resolves an external field name to its canonical key
func CanonicalField(name string) string {
	if canonical, ok := FieldAliases[name]; ok {
		return canonical
	}
	return strings.ToLower(name)
}

func keyRank(key string) int {
	switch {
	case CanonicalField(key) == key:
		return 0
	case FieldAliases[key] == "":
		return 1
	default:
		return 2
	}
}

// sessionJSON is the canonical wire shape of a Session
type sessionJSON struct {
	SessionID    string `json:"sessionid"`
	Date         int    `json:"date"`
	Time         int    `json:"time"`
	LoginID      string `json:"loginid"`
	WarehouseID  string `json:"whseid"`
	OrderNumber  string `json:"ordernbr"`
	BinNumber    string `json:"binnbr"`
	PalletNumber string `json:"palletnbr"`
	CartonNumber string `json:"cartonnbr"`
	Status       string `json:"status"`
	Function     string `json:"function"`
}

// MarshalJSON encodes the record with canonical keys
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		SessionID:    s.sessionID,
		Date:         s.Date,
		Time:         s.Time,
		LoginID:      s.LoginID,
		WarehouseID:  s.WarehouseID,
		OrderNumber:  s.OrderNumber,
		BinNumber:    s.BinNumber,
		PalletNumber: s.PalletNumber,
		CartonNumber: s.CartonNumber,
		Status:       s.Status,
		Function:     s.Function,
	})
}

// UnmarshalJSON decodes canonical or aliased keys into the record
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Canonical keys win over case variants, which win over aliases
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keyRank(keys[i]), keyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	normalized := make(map[string]json.RawMessage, len(raw))
	for _, key := range keys {
		canonical := CanonicalField(key)
		if _, taken := normalized[canonical]; !taken {
			normalized[canonical] = raw[key]
		}
	}

	buf, err := json.Marshal(normalized)
	if err != nil {
		return err
	}

	var sj sessionJSON
	if err := json.Unmarshal(buf, &sj); err != nil {
		return fmt.Errorf("failed to decode whse session: %w", err)
	}

	*s = Session{
		sessionID:    sj.SessionID,
		Date:         sj.Date,
		Time:         sj.Time,
		LoginID:      sj.LoginID,
		WarehouseID:  sj.WarehouseID,
		OrderNumber:  sj.OrderNumber,
		BinNumber:    sj.BinNumber,
		PalletNumber: sj.PalletNumber,
		CartonNumber: sj.CartonNumber,
		Status:       sj.Status,
		Function:     sj.Function,
		classifier:   s.classifier,
	}
	return nil
}
