package procdef

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/teranos/cascade/batch"
	"github.com/teranos/cascade/errors"
)

// BatchTypeInstanceSuspension is the batch type for bulk suspension or
// activation of process instances by id.
const BatchTypeInstanceSuspension = "instance-suspension"

// instanceSuspensionConfig is the batch configuration payload: the full
// instance id list plus the target state. Each execution job covers a
// disjoint index range of the list.
type instanceSuspensionConfig struct {
	InstanceIDs []string `json:"instance_ids"`
	Suspended   bool     `json:"suspended"`
}

// InstanceSuspensionHandler executes one slice of a bulk instance
// suspension batch.
type InstanceSuspensionHandler struct {
	log *zap.SugaredLogger
}

// NewInstanceSuspensionHandler creates the batch handler for bulk
// instance suspension.
func NewInstanceSuspensionHandler(log *zap.SugaredLogger) *InstanceSuspensionHandler {
	return &InstanceSuspensionHandler{log: log.Named("instance-suspension")}
}

func (h *InstanceSuspensionHandler) Type() string {
	return BatchTypeInstanceSuspension
}

func (h *InstanceSuspensionHandler) Execute(ctx context.Context, tx *sql.Tx, configuration []byte, start, count int) error {
	var cfg instanceSuspensionConfig
	if err := json.Unmarshal(configuration, &cfg); err != nil {
		return errors.Wrap(err, "failed to unmarshal instance suspension configuration")
	}

	if start < 0 || start+count > len(cfg.InstanceIDs) {
		return errors.Newf("work unit range [%d, %d) exceeds %d instance ids", start, start+count, len(cfg.InstanceIDs))
	}

	store := NewStore(tx)
	for _, id := range cfg.InstanceIDs[start : start+count] {
		if err := store.SetInstanceSuspendedByID(id, cfg.Suspended); err != nil {
			return err
		}
	}

	h.log.Debugw("Updated instance suspension slice",
		"start", start,
		"count", count,
		"suspended", cfg.Suspended,
	)
	return nil
}

// SubmitInstanceSuspension submits a bulk batch that moves the given
// process instances to the target suspension state. The batch size is the
// number of instance ids.
func SubmitInstanceSuspension(ctx context.Context, svc *batch.Service, instanceIDs []string, suspended bool, tenantID string) (*batch.Batch, error) {
	if len(instanceIDs) == 0 {
		return nil, errors.InvalidParameterf("at least one process instance id must be provided")
	}

	cfg, err := json.Marshal(instanceSuspensionConfig{InstanceIDs: instanceIDs, Suspended: suspended})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal instance suspension configuration")
	}

	return svc.Submit(ctx, batch.SubmitRequest{
		Type:          BatchTypeInstanceSuspension,
		Size:          len(instanceIDs),
		Configuration: cfg,
		TenantID:      tenantID,
	})
}
