package redis

import "fmt"

// RateLimitUserKey is the sliding-window key for an authenticated user.
func RateLimitUserKey(scope string, userID uint) string {
	return fmt.Sprintf("store_api:rate_limit:%s:user:%d", scope, userID)
}

// RateLimitIPKey is the sliding-window key used when the caller is anonymous.
func RateLimitIPKey(scope, ip string) string {
	return fmt.Sprintf("store_api:rate_limit:%s:ip:%s", scope, ip)
}

// LockKey names a short-lived mutual-exclusion lock.
func LockKey(name string) string {
	return fmt.Sprintf("store_api:lock:%s", name)
}
