package internaldefs

import (
	sias "github.com/MrEthical07/sias"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   sias.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   sias.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for [sias.Engine.AuditDropped].
const AuditDroppedName = "sias_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: sias.MetricLoginSuccess, Name: "sias_login_success_total", Help: "Successful sign-ins."},
	{ID: sias.MetricLoginFailure, Name: "sias_login_failure_total", Help: "Sign-ins rejected for bad credentials."},
	{ID: sias.MetricLoginLocked, Name: "sias_login_locked_total", Help: "Sign-ins rejected because the account was locked."},
	{ID: sias.MetricAccountLocked, Name: "sias_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: sias.MetricMFAChallenge, Name: "sias_mfa_challenge_total", Help: "Sign-ins that required a second factor."},
	{ID: sias.MetricMFASuccess, Name: "sias_mfa_success_total", Help: "Accepted second-factor codes."},
	{ID: sias.MetricMFAFailure, Name: "sias_mfa_failure_total", Help: "Rejected second-factor codes."},
	{ID: sias.MetricMFARateLimited, Name: "sias_mfa_rate_limited_total", Help: "Second-factor attempts refused by the limiter."},
	{ID: sias.MetricBackupCodeUsed, Name: "sias_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: sias.MetricMFAEnabled, Name: "sias_mfa_enabled_total", Help: "Completed MFA enrolments."},
	{ID: sias.MetricMFADisabled, Name: "sias_mfa_disabled_total", Help: "MFA disable operations."},
	{ID: sias.MetricSessionCreated, Name: "sias_session_created_total", Help: "Sessions issued."},
	{ID: sias.MetricSessionInvalidated, Name: "sias_session_invalidated_total", Help: "Sessions rejected or revoked."},
	{ID: sias.MetricLogout, Name: "sias_logout_total", Help: "Sign-outs."},
	{ID: sias.MetricSignupSuccess, Name: "sias_signup_success_total", Help: "Accounts created."},
	{ID: sias.MetricSignupFailure, Name: "sias_signup_failure_total", Help: "Rejected sign-ups."},
	{ID: sias.MetricEmailVerified, Name: "sias_email_verified_total", Help: "Email addresses verified."},
	{ID: sias.MetricPasswordResetRequest, Name: "sias_password_reset_request_total", Help: "Password reset requests."},
	{ID: sias.MetricPasswordResetSuccess, Name: "sias_password_reset_success_total", Help: "Completed password resets."},
	{ID: sias.MetricPasswordResetFailure, Name: "sias_password_reset_failure_total", Help: "Rejected password reset confirmations."},
	{ID: sias.MetricPasswordReuseRejected, Name: "sias_password_reuse_rejected_total", Help: "New passwords rejected as recently used."},
	{ID: sias.MetricAccessDenied, Name: "sias_access_denied_total", Help: "Access control denials."},
	{ID: sias.MetricAuditWritten, Name: "sias_audit_written_total", Help: "Audit entries persisted."},
	{ID: sias.MetricAuditWriteFailure, Name: "sias_audit_write_failure_total", Help: "Audit entries that failed to persist."},
	{ID: sias.MetricAuditDecryptFailure, Name: "sias_audit_decrypt_failure_total", Help: "Audit details that could not be decrypted."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sias.MetricValidateLatency, Name: "sias_session_validate_seconds", Help: "Session validation latency."},
}

// HistogramBounds are the finite upper bounds, in seconds, of the engine's
// latency buckets. The engine keeps one extra overflow bucket.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
