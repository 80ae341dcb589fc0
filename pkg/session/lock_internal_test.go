package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/botflow/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nil)
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		key := domain.SessionKey{ConversationID: fmt.Sprintf("conv-%d", i), BotID: "bot"}
		_ = mgr.WithLock(ctx, key, func(context.Context) error { return nil })
	}

	if n := mgr.activeLocks(); n != 0 {
		t.Errorf("lock leak: %d entries remain after all sessions were released", n)
	}
}
