package whse

import (
	"strings"
)

// Condition is one semantic flag derived from a backend status message
type Condition uint16

const (
	OrderFinished Condition = 1 << iota
	OrderExited
	OrderOnHold
	OrderVerified
	OrderInvoiced
	OrderInvalid
	WrongFunction
	Succeeded
)

var conditionNames = map[Condition]string{
	OrderFinished: "order_finished",
	OrderExited:   "order_exited",
	OrderOnHold:   "order_on_hold",
	OrderVerified: "order_verified",
	OrderInvoiced: "order_invoiced",
	OrderInvalid:  "order_invalid",
	WrongFunction: "wrong_function",
	Succeeded:     "succeeded",
}

// AllConditions lists every condition in declaration order
var AllConditions = []Condition{
	OrderFinished,
	OrderExited,
	OrderOnHold,
	OrderVerified,
	OrderInvoiced,
	OrderInvalid,
	WrongFunction,
	Succeeded,
}

func (c Condition) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return "unknown"
}

// Conditions is a set of conditions. A status can match several at once.
type Conditions uint16

// Has reports whether c is in the set
func (cs Conditions) Has(c Condition) bool {
	return uint16(cs)&uint16(c) != 0
}

// With returns the set with c added
func (cs Conditions) With(c Condition) Conditions {
	return cs | Conditions(c)
}

// Map returns every known condition keyed by name
func (cs Conditions) Map() map[string]bool {
	m := make(map[string]bool, len(AllConditions))
	for _, c := range AllConditions {
		m[c.String()] = cs.Has(c)
	}
	return m
}

// Classifier maps a free text status to the conditions it describes
type Classifier interface {
	Classify(status, orderNumber string) Conditions
}

// DefaultVocabulary returns the phrases the execution backend is known to emit
func DefaultVocabulary() map[Condition]string {
	return map[Condition]string{
		OrderFinished: "end of order",
		OrderExited:   "order exited",
		OrderOnHold:   "order on hold",
		OrderVerified: "order is verified",
		OrderInvoiced: "order is invoiced",
		OrderInvalid:  "bad order nbr",
		WrongFunction: "wrong function",
		Succeeded:     "success",
	}
}

// PhraseClassifier matches lower-cased phrases as substrings of the status
type PhraseClassifier struct {
	phrases map[Condition]string
}

var defaultClassifier = NewPhraseClassifier(DefaultVocabulary())

// NewPhraseClassifier creates a classifier for the given vocabulary.
// Empty phrases are ignored.
func NewPhraseClassifier(vocabulary map[Condition]string) *PhraseClassifier {
	phrases := make(map[Condition]string, len(vocabulary))
	for c, phrase := range vocabulary {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		phrases[c] = phrase
	}
	return &PhraseClassifier{phrases: phrases}
}

// Classify tests every phrase independently
func (p *PhraseClassifier) Classify(status, orderNumber string) Conditions {
	text := normalizeStatus(status, orderNumber)

	var cs Conditions
	for c, phrase := range p.phrases {
		if strings.Contains(text, phrase) {
			cs = cs.With(c)
		}
	}
	return cs
}

// normalizeStatus lower-cases the status and drops the order number when the
// backend embedded it in the message, e.g. "Order 00123 is Invoiced".
func normalizeStatus(status, orderNumber string) string {
	text := strings.ToLower(status)

	orderNumber = strings.ToLower(strings.TrimSpace(orderNumber))
	if orderNumber == "" || !strings.Contains(text, orderNumber) {
		return text
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(text, orderNumber, " ")), " ")
}

// ParseCondition returns the condition with the given name
func ParseCondition(name string) (Condition, bool) {
	for c, n := range conditionNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}
