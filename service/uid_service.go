package service

import (
	"context"
	"fmt"

	"github.com/sony/sonyflake"
)

// sonyflakeUID issues the event ids the redelivery ring orders by.
type sonyflakeUID struct {
	generator *sonyflake.Sonyflake
}

func NewSonyflakeUID(generator *sonyflake.Sonyflake) *sonyflakeUID {
	return &sonyflakeUID{generator: generator}
}

func (s *sonyflakeUID) NewUID(ctx context.Context) (uint64, error) {
	id, err := s.generator.NextID()
	if err != nil {
		return 0, fmt.Errorf("next sonyflake id: %w", err)
	}

	return id, nil
}
