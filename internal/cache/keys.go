package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ProfileKeyPrefix = "profile:%d"
	AdminOverviewKey = "admin:overview"
	WSTicketPrefix   = "ws_ticket:%s"
	BlacklistPrefix  = "blacklist:%s"
)

const (
	ProfileTTL       = 5 * time.Minute
	AdminOverviewTTL = 30 * time.Second
	WSTicketTTL      = 30 * time.Second
)

func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketPrefix, ticket)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistPrefix, jti)
}

// Invalidate removes key; a missing client is a no-op.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateProfile(ctx context.Context, userID uint) {
	Invalidate(ctx, ProfileKey(userID))
}

// InvalidateAdminOverview drops the cached admin counters after content changes.
func InvalidateAdminOverview(ctx context.Context) {
	Invalidate(ctx, AdminOverviewKey)
}
