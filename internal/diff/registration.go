package diff

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

// registrationFields lists the compared attributes in emission order.
var registrationFields = []struct {
	name string
	get  func(model.RegistrationRecord) string
}{
	{model.FieldName, func(r model.RegistrationRecord) string { return r.Name }},
	{model.FieldOwner, func(r model.RegistrationRecord) string { return r.Owner }},
	{model.FieldCategory, func(r model.RegistrationRecord) string { return r.Category }},
	{model.FieldComposition, func(r model.RegistrationRecord) string { return r.Composition }},
	{model.FieldIndication, func(r model.RegistrationRecord) string { return r.Indication }},
	{model.FieldSequence, func(r model.RegistrationRecord) string { return r.Sequence }},
	{model.FieldExpiryDate, func(r model.RegistrationRecord) string { return r.ExpiryDate }},
}

// Registrations compares two registration snapshots field by field.
// Comparison is exact value equality; any normalization must have happened at
// load time. An identifier or classification failure aborts the run without
// emitting a partial change-set.
func Registrations(oldSnap, newSnap *model.RegistrationSnapshot, cls *taxonomy.Classifier) (*model.ChangeSet, error) {
	oldByID, err := indexRegistrations(oldSnap.Records)
	if err != nil {
		return nil, eris.Wrap(err, "diff: index old registration snapshot")
	}
	newByID, err := indexRegistrations(newSnap.Records)
	if err != nil {
		return nil, eris.Wrap(err, "diff: index new registration snapshot")
	}

	var changes []model.ChangeRecord

	for id, rec := range newByID {
		if _, ok := oldByID[id]; ok {
			continue
		}
		flag, err := cls.Classify(model.KindNew, "", nil, nil)
		if err != nil {
			return nil, err
		}
		changes = append(changes, model.ChangeRecord{
			GTIN: id,
			Name: displayName(rec.Name, rec.Owner),
			Kind: model.KindNew,
			Flag: int(flag),
		})
	}

	for id, rec := range oldByID {
		if _, ok := newByID[id]; ok {
			continue
		}
		flag, err := cls.Classify(model.KindDeleted, "", nil, nil)
		if err != nil {
			return nil, err
		}
		changes = append(changes, model.ChangeRecord{
			GTIN: id,
			Name: displayName(rec.Name, rec.Owner),
			Kind: model.KindDeleted,
			Flag: int(flag),
		})
	}

	for id, oldRec := range oldByID {
		newRec, ok := newByID[id]
		if !ok {
			continue
		}
		for _, f := range registrationFields {
			oldVal, newVal := f.get(oldRec), f.get(newRec)
			if oldVal == newVal {
				continue
			}
			flag, err := cls.Classify(model.KindFieldChanged, f.name, nil, nil)
			if err != nil {
				return nil, err
			}
			changes = append(changes, model.ChangeRecord{
				GTIN:  id,
				Name:  newRec.Name,
				Kind:  model.KindFieldChanged,
				Field: f.name,
				Old:   oldVal,
				New:   newVal,
				Flag:  int(flag),
			})
		}
	}

	sortChanges(changes)

	zap.L().Info("registration diff complete",
		zap.String("old", oldSnap.Label),
		zap.String("new", newSnap.Label),
		zap.Int("old_records", len(oldByID)),
		zap.Int("new_records", len(newByID)),
		zap.Int("changes", len(changes)),
	)

	return &model.ChangeSet{
		Source:      "registration",
		OldLabel:    oldSnap.Label,
		NewLabel:    newSnap.Label,
		GeneratedAt: time.Now().UTC(),
		Legend:      cls.FullLegend(),
		Changes:     changes,
	}, nil
}

func indexRegistrations(records []model.RegistrationRecord) (map[string]model.RegistrationRecord, error) {
	byID := make(map[string]model.RegistrationRecord, len(records))
	for _, rec := range records {
		id, err := keyOf(rec)
		if err != nil {
			return nil, err
		}
		byID[id] = rec
	}
	return byID, nil
}
