package writeback

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeStoreVariant = "variant:store"

func NewStoreVariantTask(v Variant) (*asynq.Task, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal variant payload: %w", err)
	}
	return asynq.NewTask(TypeStoreVariant, body), nil
}

func ParseStoreVariantPayload(task *asynq.Task) (Variant, error) {
	var v Variant
	if err := json.Unmarshal(task.Payload(), &v); err != nil {
		return Variant{}, fmt.Errorf("unmarshal variant payload: %w", err)
	}
	return v, nil
}
