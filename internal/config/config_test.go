package config

import "testing"

func validConfig() Config {
	return Config{
		App:    AppConfig{Port: 3000},
		Telnyx: TelnyxConfig{APIKey: "KEY0123456789", APIBase: defaultAPIBase},
		DB:     DBConfig{Driver: DriverSQLite, SQLitePath: "./analytics.sqlite"},
	}
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	c := validConfig()
	c.Telnyx.APIKey = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for missing TELNYX_API_KEY")
	}
}

func TestValidate_RejectsUnprefixedAPIKey(t *testing.T) {
	c := validConfig()
	c.Telnyx.APIKey = "sk_live_nope"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for credential without KEY prefix")
	}
}

func TestValidate_SQLiteDefaultsAreValid(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_PostgresRequiresConnectionDetails(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Driver: DriverPostgres}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for postgres driver without host/user/name")
	}
}

func TestValidate_PostgresDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Driver: DriverPostgres, Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "analytics"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	c := validConfig()
	c.DB.Driver = "mysql"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown DB_DRIVER")
	}
}

func TestDepartmentURIs(t *testing.T) {
	c := validConfig()
	c.Telnyx.SalesURI = "sip:a@x"
	c.Telnyx.SupportURI = "sip:b@x"
	c.Telnyx.PortingURI = "sip:c@x"

	uris := c.DepartmentURIs()
	if uris["sales"] != "sip:a@x" || uris["support"] != "sip:b@x" || uris["porting"] != "sip:c@x" {
		t.Fatalf("unexpected department uris: %v", uris)
	}
}
