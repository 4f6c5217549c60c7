package config

import (
	_ "github.com/naturecache/naturecache/internal/routeclass/api"
	_ "github.com/naturecache/naturecache/internal/routeclass/nav"
	_ "github.com/naturecache/naturecache/internal/routeclass/static"
)
