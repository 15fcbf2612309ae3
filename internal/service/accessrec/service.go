package accessrec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/domain/access"
	"github.com/raisedeck/accesslink/internal/repository"
)

// Service reads and writes access records on behalf of the validation
// endpoints.
type Service struct {
	repo   repository.AccessRepository
	logger *zap.Logger
}

// NewService wires the access-record service.
func NewService(repo repository.AccessRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the record for uid, or the all-defaults shape when no row
// exists yet.
func (s *Service) Get(ctx context.Context, uid string) (access.AccessRecord, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return access.AccessRecord{}, fmt.Errorf("uid required: %w", access.ErrInvalidRequest)
	}
	return s.repo.Get(ctx, uid)
}

// Save applies the recognized fields of the payload to the record and upserts
// it. Section columns merge rather than replace; unknown fields are ignored;
// a payload with no recognized field is a client error, not a silent success.
func (s *Service) Save(ctx context.Context, uid string, fields map[string]any) (access.AccessRecord, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return access.AccessRecord{}, fmt.Errorf("uid required: %w", access.ErrInvalidRequest)
	}
	if !hasRecognizedField(fields) {
		return access.AccessRecord{}, fmt.Errorf("no recognized fields in payload: %w", access.ErrInvalidRequest)
	}

	var saved access.AccessRecord
	err := s.repo.InTx(ctx, func(store repository.AccessStore) error {
		rec, err := store.Get(ctx, uid)
		if err != nil {
			return err
		}
		applyFields(&rec, fields)
		saved, err = store.Upsert(ctx, rec)
		return err
	})
	if err != nil {
		return access.AccessRecord{}, err
	}

	s.logger.Info("access record saved",
		zap.String("uid", uid),
		zap.Int("fields", len(fields)),
	)
	return saved, nil
}

func hasRecognizedField(fields map[string]any) bool {
	for _, column := range []string{
		access.ColumnSourceControl,
		access.ColumnCICD,
		access.ColumnOther,
		access.ColumnNotes,
	} {
		if _, ok := fields[column]; ok {
			return true
		}
	}
	return false
}

func applyFields(rec *access.AccessRecord, fields map[string]any) {
	if v, ok := fields[access.ColumnSourceControl]; ok {
		rec.SourceControl = access.MergeSections(rec.SourceControl, v)
	}
	if v, ok := fields[access.ColumnCICD]; ok {
		rec.CICD = access.MergeSections(rec.CICD, v)
	}
	if v, ok := fields[access.ColumnOther]; ok {
		if m, isMap := v.(map[string]any); isMap {
			if _, sectionShaped := m["selected"]; sectionShaped {
				rec.Other = access.MergeSections(rec.Other, m).Map()
			} else {
				rec.Other = m
			}
		}
	}
	if v, ok := fields[access.ColumnNotes]; ok {
		rec.Notes = coerceString(v)
	}
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
