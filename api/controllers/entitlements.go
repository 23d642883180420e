package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/entitlements"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const defaultStreamHeartbeat = 25 * time.Second

type entitlementResponse struct {
	State     enums.EntitlementState `json:"state"`
	Pass      *passes.PassDTO        `json:"pass,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
}

func toEntitlementResponse(d entitlements.Decision) entitlementResponse {
	return entitlementResponse{State: d.State, Pass: passes.ToDTO(d.Pass), CheckedAt: d.CheckedAt}
}

type entitlementWatcher interface {
	Watch(ctx context.Context, userID uuid.UUID, onChange func(entitlements.Decision)) error
}

// MyEntitlement answers the current gate state for the caller.
func MyEntitlement(evaluator entitlements.Evaluator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, err := evaluator.Evaluate(r.Context(), middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toEntitlementResponse(decision))
	}
}

// EntitlementStream pushes gate transitions as Server-Sent Events until the
// client disconnects. No event has been sent while the state is loading.
func EntitlementStream(watcher entitlementWatcher, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultStreamHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		header := w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		decisions := make(chan entitlements.Decision, 1)
		done := make(chan error, 1)
		go func() {
			done <- watcher.Watch(ctx, userID, func(d entitlements.Decision) {
				select {
				case decisions <- d:
				case <-ctx.Done():
				}
			})
		}()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				<-done
				return
			case err := <-done:
				if err != nil && logg != nil {
					logg.Error(ctx, "entitlements.stream_failed", err)
				}
				return
			case d := <-decisions:
				if err := writeEvent(w, "entitlement", toEntitlementResponse(d)); err != nil {
					cancel()
					<-done
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					cancel()
					<-done
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
