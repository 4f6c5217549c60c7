package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供路由类别/命中状态字段，供代理请求日志复用。
func RequestFields(route, class, policy, requestID string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"route":      route,
		"class":      class,
		"policy":     policy,
		"request_id": requestID,
		"cache_hit":  cacheHit,
	}
}

// QueryFields 提供数据层查询日志字段：查询键、状态与令牌序号。
func QueryFields(key, state string, token uint64) logrus.Fields {
	return logrus.Fields{
		"query_key": key,
		"state":     state,
		"token":     token,
	}
}
