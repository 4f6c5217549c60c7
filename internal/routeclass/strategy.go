package routeclass

import "time"

// ProfileOptions 描述来自 Route 配置的 override。
type ProfileOptions struct {
	TTLOverride time.Duration
}

// ResolveProfile 将类别的默认策略与路由级覆盖合并。
func ResolveProfile(meta ClassMetadata, opts ProfileOptions) PolicyProfile {
	profile := meta.Policy
	if opts.TTLOverride > 0 {
		profile.TTLHint = opts.TTLOverride
	}
	return normalizeProfile(profile)
}

func normalizeProfile(profile PolicyProfile) PolicyProfile {
	if profile.TTLHint < 0 {
		profile.TTLHint = 0
	}
	if profile.Mode == "" {
		profile.Mode = PolicyCacheFirst
	}
	return profile
}
