package whse

import (
	"context"
	"fmt"

	"github.com/yegors/whse-session/pkg/logger"
)

// Backend actions understood by the redirect endpoints
const (
	ActionInitiateWhse  = "initiate-whse"
	ActionStartPick     = "start-pick"
	ActionStartPickPack = "start-pick-pack"
	ActionLogout        = "logout"
)

// UIConfigKey is the registry key the session payload is published under
const UIConfigKey = "session"

// Op names a persistence operation for query rendering
type Op string

const (
	OpLoadSession       Op = "load-session"
	OpSessionExists     Op = "session-exists"
	OpPickedItems       Op = "picked-items"
	OpPickedQtyTotal    Op = "picked-qty-total"
	OpDeletePickedItems Op = "delete-picked-items"
)

// PickedItem is one barcode scanned against an order line
type PickedItem struct {
	SessionID    string `json:"sessionid"`
	OrderNumber  string `json:"ordernbr"`
	ItemID       string `json:"itemid"`
	RecordNumber int    `json:"recordnumber"`
	Barcode      string `json:"barcode"`
	BinNumber    string `json:"binnbr"`
	PalletNumber string `json:"palletnbr"`
	Qty          int    `json:"qty"`
}

// Repository is the persistence collaborator for session records
type Repository interface {
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	PickedItems(ctx context.Context, sessionID, orderNumber, itemID string) ([]PickedItem, error)
	PickedQtyTotal(ctx context.Context, sessionID, orderNumber, itemID string) (int, error)
	DeletePickedItems(ctx context.Context, sessionID string) (int64, error)

	// Explain renders the query op would run, without running it
	Explain(op Op, args ...string) (string, error)
}

// WarehouseStore supplies bin configuration keyed by warehouse ID
type WarehouseStore interface {
	GetWarehouse(ctx context.Context, whseID string) (*Warehouse, error)
}

// Notifier sends an action for a session to a backend redirect path
type Notifier interface {
	Notify(ctx context.Context, path, action, sessionID string) error
}

// Publisher receives UI configuration payloads
type Publisher interface {
	Publish(key string, payload map[string]any)
}

// Pages holds the backend paths the redirect endpoints live under
type Pages struct {
	Warehouse         string
	SalesOrderPicking string
}

// Service loads session records and forwards session actions to the backend
type Service struct {
	repo       Repository
	warehouses WarehouseStore
	notifier   Notifier
	publisher  Publisher
	pages      Pages
	classifier Classifier
	logger     *logger.Logger
}

// NewService creates a session service. A nil classifier selects the default vocabulary.
func NewService(repo Repository, warehouses WarehouseStore, notifier Notifier, publisher Publisher, pages Pages, classifier Classifier, logger *logger.Logger) *Service {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return &Service{
		repo:       repo,
		warehouses: warehouses,
		notifier:   notifier,
		publisher:  publisher,
		pages:      pages,
		classifier: classifier,
		logger:     logger.Named("whse-session"),
	}
}

// Load reads the session record for sessionID.
// Returns ErrSessionNotFound when no record exists.
func (s *Service) Load(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.WithClassifier(s.classifier), nil
}

// Exists reports whether a session record exists for sessionID
func (s *Service) Exists(ctx context.Context, sessionID string) (bool, error) {
	exists, err := s.repo.SessionExists(ctx, sessionID)
	if err != nil {
		return false, err
	}
	s.logger.Debug("Checked whse session",
		logger.String("session_id", sessionID),
		logger.Bool("exists", exists))
	return exists, nil
}

// PickedItems returns the barcodes picked so far for itemID on the session's order
func (s *Service) PickedItems(ctx context.Context, session *Session, itemID string) ([]PickedItem, error) {
	return s.repo.PickedItems(ctx, session.SessionID(), session.OrderNumber, itemID)
}

// PickedQtyTotal returns the total quantity picked for itemID on the session's order
func (s *Service) PickedQtyTotal(ctx context.Context, session *Session, itemID string) (int, error) {
	return s.repo.PickedQtyTotal(ctx, session.SessionID(), session.OrderNumber, itemID)
}

// DeletePickedItems removes every picked item for the session and returns the count removed
func (s *Service) DeletePickedItems(ctx context.Context, session *Session) (int64, error) {
	n, err := s.repo.DeletePickedItems(ctx, session.SessionID())
	if err != nil {
		return 0, err
	}
	s.logger.Debug("Deleted picked items",
		logger.String("session_id", session.SessionID()),
		logger.Int64("count", n))
	return n, nil
}

// Debug variants: render the query instead of running it

func (s *Service) ExplainLoad(sessionID string) (string, error) {
	return s.repo.Explain(OpLoadSession, sessionID)
}

func (s *Service) ExplainExists(sessionID string) (string, error) {
	return s.repo.Explain(OpSessionExists, sessionID)
}

func (s *Service) ExplainPickedItems(session *Session, itemID string) (string, error) {
	return s.repo.Explain(OpPickedItems, session.SessionID(), session.OrderNumber, itemID)
}

func (s *Service) ExplainPickedQtyTotal(session *Session, itemID string) (string, error) {
	return s.repo.Explain(OpPickedQtyTotal, session.SessionID(), session.OrderNumber, itemID)
}

func (s *Service) ExplainDeletePickedItems(session *Session) (string, error) {
	return s.repo.Explain(OpDeletePickedItems, session.SessionID())
}

// StartSession asks the backend to initiate a warehouse session
func (s *Service) StartSession(ctx context.Context, sessionID string) error {
	return s.notify(ctx, s.pages.Warehouse, ActionInitiateWhse, sessionID)
}

// StartPicking asks the backend to start a picking session
func (s *Service) StartPicking(ctx context.Context, session *Session) error {
	return s.notify(ctx, s.pages.SalesOrderPicking, ActionStartPick, session.SessionID())
}

// StartPickPack asks the backend to start a pick pack session
func (s *Service) StartPickPack(ctx context.Context, session *Session) error {
	return s.notify(ctx, s.pages.SalesOrderPicking, ActionStartPickPack, session.SessionID())
}

// EndSession asks the backend to log the session out
func (s *Service) EndSession(ctx context.Context, session *Session) error {
	return s.notify(ctx, s.pages.SalesOrderPicking, ActionLogout, session.SessionID())
}

func (s *Service) notify(ctx context.Context, path, action, sessionID string) error {
	s.logger.Info("Sending session action to backend",
		logger.String("action", action),
		logger.String("session_id", sessionID))

	if err := s.notifier.Notify(ctx, path, action, sessionID); err != nil {
		return fmt.Errorf("%w: failed to send %s for session %s: %w", ErrBackendRequest, action, sessionID, err)
	}
	return nil
}

// PublishUIConfig builds the bin configuration payload for the session's
// warehouse and publishes it under UIConfigKey
func (s *Service) PublishUIConfig(ctx context.Context, session *Session) (map[string]any, error) {
	warehouse, err := s.warehouses.GetWarehouse(ctx, session.WarehouseID)
	if err != nil {
		return nil, err
	}

	payload := warehouse.UIConfig()
	s.publisher.Publish(UIConfigKey, payload)

	s.logger.Debug("Published session UI config",
		logger.String("session_id", session.SessionID()),
		logger.String("whse_id", warehouse.ID),
		logger.String("arranged", string(warehouse.Arrangement)))

	return payload, nil
}
