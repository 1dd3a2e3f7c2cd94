package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	rec, isNew, err := loadOrCreateState(ctx, store, in.SessionID, in.UserInfo, in.Now)
	if err != nil {
		return nil, err
	}
	in.Record = rec
	in.IsNew = isNew
	in.Working = rec.Clone()
	in.Working.MergeUserInfo(in.UserInfo)
	return in, nil
}

func loadOrCreateState(
	ctx context.Context,
	store statex.Store,
	sessionID string,
	user statex.UserInfo,
	now time.Time,
) (*statex.SessionRecord, bool, error) {
	rec, err := store.Load(ctx, sessionID)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, false, err
	}
	return statex.NewSessionRecord(sessionID, user, now), true, nil
}
