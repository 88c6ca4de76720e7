package internaldefs

import (
	"github.com/MrEthical07/selfauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   selfauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   selfauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher overflow.
const AuditDroppedName = "selfauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: selfauth.MetricLoginSuccess, Name: "selfauth_login_success_total", Help: "Successful logins."},
	{ID: selfauth.MetricLoginFailure, Name: "selfauth_login_failure_total", Help: "Logins rejected for bad credentials or second factor."},
	{ID: selfauth.MetricLoginSecondFactorRequired, Name: "selfauth_login_second_factor_required_total", Help: "Logins that stopped to ask for a TOTP code."},
	{ID: selfauth.MetricLoginInactive, Name: "selfauth_login_inactive_total", Help: "Logins rejected because the account is inactive."},
	{ID: selfauth.MetricRegistration, Name: "selfauth_registration_total", Help: "Accounts registered."},
	{ID: selfauth.MetricRegistrationDuplicate, Name: "selfauth_registration_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: selfauth.MetricSessionCreated, Name: "selfauth_session_created_total", Help: "Sessions issued."},
	{ID: selfauth.MetricSessionInvalidated, Name: "selfauth_session_invalidated_total", Help: "Sessions deleted by bulk invalidation."},
	{ID: selfauth.MetricLogout, Name: "selfauth_logout_total", Help: "Logout operations."},
	{ID: selfauth.MetricTOTPSetup, Name: "selfauth_totp_setup_total", Help: "TOTP enrollments started."},
	{ID: selfauth.MetricTOTPEnabled, Name: "selfauth_totp_enabled_total", Help: "TOTP enrollments confirmed."},
	{ID: selfauth.MetricTOTPDisabled, Name: "selfauth_totp_disabled_total", Help: "TOTP disabled."},
	{ID: selfauth.MetricTOTPFailure, Name: "selfauth_totp_failure_total", Help: "Rejected TOTP codes."},
	{ID: selfauth.MetricPasswordChange, Name: "selfauth_password_change_total", Help: "Password changes."},
	{ID: selfauth.MetricPasswordRehash, Name: "selfauth_password_rehash_total", Help: "Digests upgraded after login."},
	{ID: selfauth.MetricPasswordResetRequest, Name: "selfauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: selfauth.MetricPasswordResetConfirmSuccess, Name: "selfauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: selfauth.MetricPasswordResetConfirmFailure, Name: "selfauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: selfauth.MetricMagicLinkRequest, Name: "selfauth_magic_link_request_total", Help: "Magic link requests."},
	{ID: selfauth.MetricMagicLinkLoginSuccess, Name: "selfauth_magic_link_login_success_total", Help: "Successful magic link logins."},
	{ID: selfauth.MetricMagicLinkLoginFailure, Name: "selfauth_magic_link_login_failure_total", Help: "Failed magic link logins."},
	{ID: selfauth.MetricAdminUpdate, Name: "selfauth_admin_update_total", Help: "Admin account updates."},
	{ID: selfauth.MetricAdminDelete, Name: "selfauth_admin_delete_total", Help: "Admin account deletions."},
	{ID: selfauth.MetricSelfProtectionViolation, Name: "selfauth_self_protection_violation_total", Help: "Admin self-demotion or self-deletion attempts."},
	{ID: selfauth.MetricNotificationFailure, Name: "selfauth_notification_failure_total", Help: "Notifications the notifier failed to send."},
}

var HistogramDefs = []HistogramDef{
	{ID: selfauth.MetricAuthenticateLatency, Name: "selfauth_authenticate_latency_seconds", Help: "Bearer authentication latency."},
}

// HistogramBounds are the Prometheus le labels, in bucket order.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix are metric-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// CumulativeBuckets converts raw per-bucket counts into cumulative counts.
// Missing trailing buckets count as zero.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
