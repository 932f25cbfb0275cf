package config

import (
	"testing"
	"time"
)

func TestInit_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("FLASH_TTL", "90s")
	t.Setenv("KAFKA_READ_TIMEOUT", "not-a-duration")

	c := Init()

	if c.StoreDriver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", c.StoreDriver)
	}
	if c.FlashTTL != 90*time.Second {
		t.Fatalf("expected 90s flash ttl, got %s", c.FlashTTL)
	}
	if c.KafkaReadTO != 10*time.Second {
		t.Fatalf("expected fallback read timeout, got %s", c.KafkaReadTO)
	}
	if c.ServerAddr != ":8080" {
		t.Fatalf("expected default server addr, got %q", c.ServerAddr)
	}
	if Get() != c {
		t.Fatal("Get should return the loaded config")
	}
}

func TestInit_EmptyKafkaBrokerDisablesEvents(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "")

	c := Init()

	if c.KafkaBroker != "" {
		t.Fatalf("expected empty broker, got %q", c.KafkaBroker)
	}
	if c.KafkaTopic != "posts" {
		t.Fatalf("unset keys should keep their defaults, got topic %q", c.KafkaTopic)
	}
	if c.KafkaWriteTO != 2*time.Second {
		t.Fatalf("expected 2s write timeout, got %s", c.KafkaWriteTO)
	}
}

func TestParseDuration(t *testing.T) {
	if d := parseDuration("3s", time.Minute); d != 3*time.Second {
		t.Fatalf("expected 3s, got %s", d)
	}
	if d := parseDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected default, got %s", d)
	}
}
