package config

import "os"

type Config struct {
	Addr        string
	DBPath      string
	DownloadDir string
	APIURL      string
}

func Default() Config {
	return Config{
		Addr:        envOr("SHIURCAST_ADDR", "127.0.0.1:8080"),
		DBPath:      envOr("SHIURCAST_DB_PATH", "shiurcast.db"),
		DownloadDir: envOr("SHIURCAST_DOWNLOAD_DIR", "downloads"),
		APIURL:      envOr("SHIURCAST_API_URL", "https://api.shiurcast.example.com/v1"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
