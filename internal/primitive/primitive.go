// Package primitive is the Primitive Registry: a fixed kind-name -> validator
// table for every scalar kind a YASL property can declare. Kinds never
// register at runtime; the table is closed and built once in init().
package primitive

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Value is the decoded Go representation of a scalar after a Kind's Parse
// step. Parsing and constraint-checking stay separate: a Kind only coerces
// raw text to a typed value, constraint checks run afterward as pipeline
// stages.
type Value = any

// Kind is one entry of the Primitive Registry: a name, a raw-text parser, and
// a zero-or-more set of facts the compiler can ask about it (IsNumeric,
// IsString) to decide which Validator Factory stages apply.
type Kind struct {
	Name      string
	IsNumeric bool
	IsString  bool
	IsDate    bool
	Parse     func(raw string) (Value, error)
}

var registry = map[string]*Kind{}

func register(k *Kind) {
	if _, dup := registry[k.Name]; dup {
		panic(fmt.Sprintf("primitive: duplicate kind %q", k.Name))
	}
	registry[k.Name] = k
}

// Lookup returns the Kind for a primitive name, or (nil, false) if name is
// not a primitive (i.e. it must be resolved against the schema's own types).
func Lookup(name string) (*Kind, bool) {
	k, ok := registry[name]
	return k, ok
}

// Names returns every registered primitive kind name, for diagnostics and
// "unknown type" suggestions.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}

func parseIdentity(raw string) (Value, error) { return raw, nil }

func init() {
	registerCore()
	registerStrictSemanticNumeric()
	registerUUIDs()
	registerPaths()
	registerBase64()
	registerURLs()
	registerDSNs()
	registerEmailIP()
	registerPhysicalQuantities()
}

func registerCore() {
	register(&Kind{Name: "str", IsString: true, Parse: parseIdentity})
	register(&Kind{Name: "string", IsString: true, Parse: parseIdentity})
	register(&Kind{Name: "int", IsNumeric: true, Parse: func(raw string) (Value, error) {
		return strconv.ParseInt(raw, 10, 64)
	}})
	register(&Kind{Name: "float", IsNumeric: true, Parse: func(raw string) (Value, error) {
		return strconv.ParseFloat(raw, 64)
	}})
	register(&Kind{Name: "bool", Parse: func(raw string) (Value, error) {
		return strconv.ParseBool(raw)
	}})
	register(&Kind{Name: "date", IsDate: true, Parse: func(raw string) (Value, error) {
		return time.Parse("2006-01-02", raw)
	}})
	register(&Kind{Name: "datetime", IsDate: true, Parse: func(raw string) (Value, error) {
		return time.Parse(time.RFC3339, raw)
	}})
	register(&Kind{Name: "time", IsDate: true, Parse: func(raw string) (Value, error) {
		return time.Parse("15:04:05", raw)
	}})
	register(&Kind{Name: "path", IsString: true, Parse: parseIdentity})
	register(&Kind{Name: "url", IsString: true, Parse: func(raw string) (Value, error) {
		return url.Parse(raw)
	}})
	register(&Kind{Name: "any", Parse: parseIdentity})
	register(&Kind{Name: "markdown", IsString: true, Parse: parseIdentity})
}

func registerStrictSemanticNumeric() {
	intKind := func(name string, pred func(int64) bool, predDesc string) {
		register(&Kind{Name: name, IsNumeric: true, Parse: func(raw string) (Value, error) {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, err
			}
			if !pred(v) {
				return nil, fmt.Errorf("%s must be %s", name, predDesc)
			}
			return v, nil
		}})
	}
	floatKind := func(name string, pred func(float64) bool, predDesc string) {
		register(&Kind{Name: name, IsNumeric: true, Parse: func(raw string) (Value, error) {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, err
			}
			if !pred(v) {
				return nil, fmt.Errorf("%s must be %s", name, predDesc)
			}
			return v, nil
		}})
	}

	register(&Kind{Name: "StrictInt", IsNumeric: true, Parse: func(raw string) (Value, error) {
		return strconv.ParseInt(raw, 10, 64)
	}})
	intKind("PositiveInt", func(v int64) bool { return v > 0 }, "positive")
	intKind("NegativeInt", func(v int64) bool { return v < 0 }, "negative")
	intKind("NonPositiveInt", func(v int64) bool { return v <= 0 }, "non-positive")
	intKind("NonNegativeInt", func(v int64) bool { return v >= 0 }, "non-negative")

	register(&Kind{Name: "StrictFloat", IsNumeric: true, Parse: func(raw string) (Value, error) {
		return strconv.ParseFloat(raw, 64)
	}})
	floatKind("PositiveFloat", func(v float64) bool { return v > 0 }, "positive")
	floatKind("NegativeFloat", func(v float64) bool { return v < 0 }, "negative")
	floatKind("NonPositiveFloat", func(v float64) bool { return v <= 0 }, "non-positive")
	floatKind("NonNegativeFloat", func(v float64) bool { return v >= 0 }, "non-negative")
	floatKind("FiniteFloat", func(v float64) bool { return !isInfOrNaN(v) }, "finite")

	register(&Kind{Name: "StrictStr", IsString: true, Parse: parseIdentity})
	register(&Kind{Name: "StrictBool", Parse: func(raw string) (Value, error) {
		return strconv.ParseBool(raw)
	}})
}

func isInfOrNaN(f float64) bool {
	return f != f || f > 1.7976931348623157e+308 || f < -1.7976931348623157e+308
}

func registerUUIDs() {
	for v := 1; v <= 8; v++ {
		version := v
		name := fmt.Sprintf("UUID%d", version)
		register(&Kind{Name: name, IsString: true, Parse: func(raw string) (Value, error) {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, err
			}
			if int(id.Version()) != version {
				return nil, fmt.Errorf("expected UUID version %d, got %d", version, id.Version())
			}
			return id, nil
		}})
	}
}

func registerPaths() {
	register(&Kind{Name: "FilePath", IsString: true, Parse: parseIdentity})
	register(&Kind{Name: "DirectoryPath", IsString: true, Parse: parseIdentity})
}

func registerBase64() {
	register(&Kind{Name: "Base64Bytes", IsString: true, Parse: func(raw string) (Value, error) {
		return base64.StdEncoding.DecodeString(raw)
	}})
	register(&Kind{Name: "Base64Str", IsString: true, Parse: func(raw string) (Value, error) {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}})
	register(&Kind{Name: "Base64UrlBytes", IsString: true, Parse: func(raw string) (Value, error) {
		return base64.URLEncoding.DecodeString(raw)
	}})
	register(&Kind{Name: "Base64UrlStr", IsString: true, Parse: func(raw string) (Value, error) {
		b, err := base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}})
}

func parseURLWithSchemes(raw string, allowed ...string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" && u.Opaque == "" {
		return nil, fmt.Errorf("not an absolute URL: %q", raw)
	}
	if len(allowed) == 0 {
		return u, nil
	}
	for _, scheme := range allowed {
		if strings.EqualFold(u.Scheme, scheme) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("scheme %q not in %v", u.Scheme, allowed)
}

func registerURLs() {
	register(&Kind{Name: "AnyUrl", IsString: true, Parse: func(raw string) (Value, error) {
		return parseURLWithSchemes(raw)
	}})
	register(&Kind{Name: "HttpUrl", IsString: true, Parse: func(raw string) (Value, error) {
		return parseURLWithSchemes(raw, "http", "https")
	}})
	register(&Kind{Name: "WebsocketUrl", IsString: true, Parse: func(raw string) (Value, error) {
		return parseURLWithSchemes(raw, "ws", "wss")
	}})
	register(&Kind{Name: "FileUrl", IsString: true, Parse: func(raw string) (Value, error) {
		return parseURLWithSchemes(raw, "file")
	}})
	register(&Kind{Name: "FtpUrl", IsString: true, Parse: func(raw string) (Value, error) {
		return parseURLWithSchemes(raw, "ftp")
	}})
}

// DSNSchemes is the known scheme set for each DSN kind; registerDSNs
// registers one kind per entry.
var DSNSchemes = map[string][]string{
	"PostgresDsn":   {"postgres", "postgresql"},
	"RedisDsn":      {"redis", "rediss"},
	"MongoDsn":      {"mongodb", "mongodb+srv"},
	"KafkaDsn":      {"kafka"},
	"NatsDsn":       {"nats"},
	"MySQLDsn":      {"mysql"},
	"MariaDBDsn":    {"mariadb", "mysql"},
	"CockroachDsn":  {"cockroachdb", "postgresql"},
	"AmqpDsn":       {"amqp", "amqps"},
	"ClickHouseDsn": {"clickhouse", "clickhouse+native"},
	"SnowflakeDsn":  {"snowflake"},
}

func registerDSNs() {
	for name, schemes := range DSNSchemes {
		kindName := name
		allowed := schemes
		register(&Kind{Name: kindName, IsString: true, Parse: func(raw string) (Value, error) {
			return parseURLWithSchemes(raw, allowed...)
		}})
	}
}

func registerEmailIP() {
	register(&Kind{Name: "EmailStr", IsString: true, Parse: func(raw string) (Value, error) {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		return addr.Address, nil
	}})
	register(&Kind{Name: "NameEmail", IsString: true, Parse: func(raw string) (Value, error) {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		return addr, nil
	}})
	register(&Kind{Name: "IPvAnyAddress", IsString: true, Parse: func(raw string) (Value, error) {
		return parseIPAny(raw)
	}})
}

// physicalUnits is the per-kind fixed unit table used to validate a
// "<number> <unit>" quantity literal against its declared physical kind.
var physicalUnits = map[string][]string{
	"Duration":                {"ns", "us", "ms", "s", "min", "h", "d"},
	"Length":                  {"m", "cm", "mm", "km", "in", "ft", "mi"},
	"Mass":                    {"g", "kg", "mg", "lb", "oz"},
	"Temperature":             {"K", "C", "F"},
	"Velocity":                {"m/s", "km/h", "mph", "ft/s"},
	"Volume":                  {"L", "mL", "m3", "gal", "ft3"},
	"AmountOfSubstance":       {"mol", "mmol"},
	"ThermalConductivity":     {"W/mK"},
	"SpecificHeatCapacity":    {"J/kgK"},
	"ElectricalFieldStrength": {"V/m"},
}

// Quantity is the decoded "<number> <unit>" pair a physical-quantity kind
// parses to.
type Quantity struct {
	Value float64
	Unit  string
}

func registerPhysicalQuantities() {
	for name, units := range physicalUnits {
		kindName := name
		allowedUnits := units
		register(&Kind{Name: kindName, IsString: true, Parse: func(raw string) (Value, error) {
			return parseQuantity(kindName, raw, allowedUnits)
		}})
	}
}

func parseQuantity(kind, raw string, allowedUnits []string) (Quantity, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return Quantity{}, fmt.Errorf("%s: expected \"<number> <unit>\", got %q", kind, raw)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("%s: invalid number %q", kind, parts[0])
	}
	for _, u := range allowedUnits {
		if u == parts[1] {
			return Quantity{Value: num, Unit: u}, nil
		}
	}
	return Quantity{}, fmt.Errorf("%s: unit %q not in %v", kind, parts[1], allowedUnits)
}

func parseIPAny(raw string) (Value, error) {
	ip := net.ParseIP(raw)
	if ip == nil {
		return nil, fmt.Errorf("not an IPv4 or IPv6 address: %q", raw)
	}
	return ip, nil
}
