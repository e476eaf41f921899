package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/schema"
)

type NewLabel struct {
	Name        string  `json:"label_name"`
	Description *string `json:"label_description,omitempty"`
}

// LabelPatch changes the supplied fields. ClearDescription sets the
// description back to NULL; in JSON it is also set by an explicit
// "label_description": null.
type LabelPatch struct {
	Name             *string `json:"label_name,omitempty"`
	Description      *string `json:"label_description,omitempty"`
	ClearDescription bool    `json:"clear_description,omitempty"`
}

func (p *LabelPatch) UnmarshalJSON(data []byte) error {
	type plain LabelPatch
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["label_description"]; ok && string(bytes.TrimSpace(raw)) == "null" {
		decoded.ClearDescription = true
	}

	*p = LabelPatch(decoded)
	return nil
}

// CreateLabel trims and validates the name, then returns the label with
// that exact name, creating it if needed. created reports whether a new
// row was written.
func (s *Service) CreateLabel(ctx context.Context, in NewLabel) (label *entities.Label, created bool, err error) {
	defer s.track("label", "create")(&err)

	err = s.inTx(ctx, func(r repos) error {
		var err error
		label, created, err = findOrCreateLabel(ctx, r, in.Name, in.Description)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.WithField("label_id", label.ID).Debug("label created")
	}
	return label, created, nil
}

// FindOrCreateLabel is CreateLabel without a description.
func (s *Service) FindOrCreateLabel(ctx context.Context, name string) (*entities.Label, error) {
	label, _, err := s.CreateLabel(ctx, NewLabel{Name: name})
	return label, err
}

func findOrCreateLabel(ctx context.Context, r repos, name string, description *string) (*entities.Label, bool, error) {
	name = schema.NormalizeLabelName(name)
	rec := schema.Record{"label_name": name}
	if description != nil {
		rec["label_description"] = *description
	}
	if err := validate(schema.Labels, rec, false); err != nil {
		return nil, false, err
	}

	existing, err := r.labels.FindByName(ctx, name)
	if err != nil {
		return nil, false, translate(err)
	}
	if existing != nil {
		return existing, false, nil
	}

	label, err := r.labels.Create(ctx, name, description)
	if errors.Is(err, database.ErrUniqueViolation) {
		// Created concurrently since the lookup.
		existing, ferr := r.labels.FindByName(ctx, name)
		if ferr != nil {
			return nil, false, translate(ferr)
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, translate(err)
	}
	return label, true, nil
}

func (s *Service) GetLabel(ctx context.Context, id int64) (*entities.Label, error) {
	label, err := s.repos.labels.FindByID(ctx, id)
	return label, translate(err)
}

// FindLabelByName looks a label up by trimmed name, exactly or ignoring
// case. It returns nil when there is no match.
func (s *Service) FindLabelByName(ctx context.Context, name string, ignoreCase bool) (*entities.Label, error) {
	name = schema.NormalizeLabelName(name)
	if name == "" {
		return nil, nil
	}
	var label *entities.Label
	var err error
	if ignoreCase {
		label, err = s.repos.labels.FindByNameFold(ctx, name)
	} else {
		label, err = s.repos.labels.FindByName(ctx, name)
	}
	return label, translate(err)
}

func (s *Service) ListLabels(ctx context.Context) ([]entities.Label, error) {
	list, err := s.repos.labels.FindAll(ctx)
	return list, translate(err)
}

// SearchLabels suggests labels containing query.
func (s *Service) SearchLabels(ctx context.Context, query string, limit int) ([]entities.Label, error) {
	list, err := s.repos.labels.Search(ctx, schema.NormalizeLabelName(query), limit)
	return list, translate(err)
}

func (s *Service) LabelUsage(ctx context.Context) ([]entities.LabelUsage, error) {
	list, err := s.repos.labels.UsageCounts(ctx)
	return list, translate(err)
}

// UpdateLabel renames or redescribes a label. It returns nil, nil when the
// label does not exist; renaming onto another label's name fails with
// ErrConstraint.
func (s *Service) UpdateLabel(ctx context.Context, id int64, patch LabelPatch) (label *entities.Label, err error) {
	defer s.track("label", "update")(&err)

	rec := schema.Record{}
	if patch.Name != nil {
		rec["label_name"] = schema.NormalizeLabelName(*patch.Name)
	}
	switch {
	case patch.ClearDescription && patch.Description != nil:
		return nil, newValidationError(schema.Labels, "label_description cannot be set and cleared at once")
	case patch.ClearDescription:
		rec["label_description"] = nil
	case patch.Description != nil:
		rec["label_description"] = *patch.Description
	}
	if err := validate(schema.Labels, rec, true); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(r repos) error {
		ok, err := r.labels.Update(ctx, id, rec)
		if errors.Is(err, database.ErrUniqueViolation) {
			return duplicateLabelName(err)
		}
		if err != nil || !ok {
			return translate(err)
		}
		label, err = r.labels.FindByID(ctx, id)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

// DeleteLabel removes the label and every annotation using it.
func (s *Service) DeleteLabel(ctx context.Context, id int64) (deleted bool, err error) {
	defer s.track("label", "delete")(&err)

	err = s.inTx(ctx, func(r repos) error {
		if _, err := r.annotations.DeleteForLabel(ctx, id); err != nil {
			return translate(err)
		}
		n, err := r.labels.Delete(ctx, id)
		deleted = n > 0
		return translate(err)
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// DeleteOrphanLabels removes labels no image uses and returns how many.
func (s *Service) DeleteOrphanLabels(ctx context.Context) (removed int64, err error) {
	defer s.track("label", "cleanup")(&err)

	err = s.inTx(ctx, func(r repos) error {
		var err error
		removed, err = r.labels.DeleteOrphans(ctx)
		return translate(err)
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("orphan labels deleted")
	}
	return removed, nil
}
