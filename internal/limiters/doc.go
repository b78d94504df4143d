// Package limiters holds the Redis fixed-window counters that throttle
// second-factor attempts, password reset requests and signups.
//
// Every limiter is nil-safe: methods on a nil receiver allow the call.
// Limiters only count; callers decide what a refusal means.
package limiters
