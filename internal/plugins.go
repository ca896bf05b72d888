package internal

import (
	_ "github.com/elastic-io/mediagate/internal/api/upload"
	_ "github.com/elastic-io/mediagate/internal/journal/badger"
	_ "github.com/elastic-io/mediagate/internal/journal/bolt"
)
