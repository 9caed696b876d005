package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "bogus")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	t.Setenv("STORE_DRIVER", "Memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != StoreMemory || cfg.StorageDriver != StorageLocal {
		t.Fatalf("unexpected drivers %q %q", cfg.StoreDriver, cfg.StorageDriver)
	}
	if cfg.LockTimeout.Seconds() != 20 || cfg.SMTPPort != 587 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Location() == nil {
		t.Fatalf("nil location")
	}
}

func TestValidateRequiresBackends(t *testing.T) {
	cfg := Config{StoreDriver: StorePostgres, StorageDriver: StorageLocal}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("postgres without DATABASE_URL should fail")
	}
	cfg = Config{StoreDriver: StoreMemory, StorageDriver: StorageS3}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("s3 without bucket should fail")
	}
	cfg = Config{StoreDriver: StoreXLSX, StorageDriver: StorageLocal}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIMAPFallsBackToSMTPAccount(t *testing.T) {
	cfg := Config{SMTPUser: "support@example.org", SMTPPassword: "app", IMAPMailboxes: "INBOX, [Gmail]/Sent Mail,"}
	user, pass := cfg.IMAPCredentials()
	if user != "support@example.org" || pass != "app" {
		t.Fatalf("expected SMTP account, got %q %q", user, pass)
	}
	boxes := cfg.Mailboxes()
	if len(boxes) != 2 || boxes[1] != "[Gmail]/Sent Mail" {
		t.Fatalf("unexpected mailboxes %q", boxes)
	}
	cfg.IMAPUser, cfg.IMAPPassword = "reader@example.org", "secret"
	if user, _ := cfg.IMAPCredentials(); user != "reader@example.org" {
		t.Fatalf("explicit IMAP user should win, got %q", user)
	}
}
