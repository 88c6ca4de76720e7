package selfauth

import (
	"context"
	"time"

	"github.com/MrEthical07/selfauth/internal/audit"
)

// AuditEvent is one security-relevant outcome delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// Sinks re-exported for callers wiring the Builder.
type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
)

const (
	auditEventRegister             = "register"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLogout               = "logout"
	auditEventTOTPSetup            = "totp_setup"
	auditEventTOTPEnable           = "totp_enable"
	auditEventTOTPDisable          = "totp_disable"
	auditEventPasswordChange       = "password_change"
	auditEventProfileUpdate        = "profile_update"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventMagicLinkRequest     = "magic_link_request"
	auditEventMagicLinkLogin       = "magic_link_login"
	auditEventAdminUpdate          = "admin_update"
	auditEventAdminDelete          = "admin_delete"
)

// emitAudit builds and queues an event. It is a no-op when auditing is
// disabled. Only the error's public kind is recorded, never store detail.
func (e *Engine) emitAudit(ctx context.Context, event string, success bool, userID, actorID string, err error, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      event,
		UserID:    userID,
		ActorID:   actorID,
		IP:        ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if err != nil {
		ev.Error = string(KindOf(err))
		if ev.Error == "" {
			ev.Error = "internal"
		}
	}
	// Flows pass the request IP in meta; the context value wins.
	if ip, ok := meta["ip"]; ok {
		if ev.IP == "" {
			ev.IP = ip
		}
		delete(meta, "ip")
	}
	e.audit.Emit(ctx, ev)
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
