package httpx

import (
	"net/http"
	"strings"

	"github.com/imatefx/control-tower/internal/domain"
)

// actorFromRequest reads the actor identity forwarded by the upstream auth
// layer. All headers are optional; system and anonymous calls leave them
// blank.
func actorFromRequest(req *http.Request) domain.Actor {
	return domain.Actor{
		ID:    strings.TrimSpace(req.Header.Get("X-Actor-Id")),
		Name:  strings.TrimSpace(req.Header.Get("X-Actor-Name")),
		Email: strings.TrimSpace(req.Header.Get("X-Actor-Email")),
	}
}

// requestMetadata captures the free-form audit metadata for a request.
func requestMetadata(req *http.Request) map[string]string {
	meta := make(map[string]string, 2)
	if ip := clientIP(req); ip != "" {
		meta["ip"] = ip
	}
	if ua := req.UserAgent(); ua != "" {
		meta["user_agent"] = ua
	}
	return meta
}

// actorDisplay picks the best human-readable label for an actor.
func actorDisplay(actor domain.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}
	if actor.Email != "" {
		return actor.Email
	}
	if actor.ID != "" {
		return actor.ID
	}
	return "anonymous"
}
