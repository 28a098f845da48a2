package dsn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CompliTrack/CompliTrack/internal/config"
)

func TestCreate(t *testing.T) {
	cfg := &config.Config{
		DB: config.DB{
			Host:     "db.local",
			Port:     5432,
			User:     "complitrack",
			Password: "secret",
			Name:     "complitrack",
			SSLMode:  "disable",
		},
	}

	got := Create(cfg)
	assert.Equal(t,
		"host=db.local user=complitrack password=secret dbname=complitrack port=5432 sslmode=disable",
		got,
	)
}

func TestCreateWithExtras(t *testing.T) {
	cfg := &config.Config{
		DB: config.DB{
			Host:     "localhost",
			Port:     5432,
			User:     "u",
			Password: "p",
			Name:     "n",
			SSLMode:  "require",
			Extras:   "TimeZone=UTC",
		},
	}

	got := Create(cfg)
	assert.Equal(t,
		"host=localhost user=u password=p dbname=n port=5432 sslmode=require TimeZone=UTC",
		got,
	)
}
