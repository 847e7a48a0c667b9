package record

// Field is a canonical semantic key of a normalized record.
type Field string

const (
	FieldName         Field = "name"
	FieldFirstName    Field = "first_name"
	FieldLastName     Field = "last_name"
	FieldEmail        Field = "email"
	FieldUsername     Field = "username"
	FieldPassword     Field = "password"
	FieldPasswordHash Field = "password_hash"
	FieldPhone        Field = "phone"
	FieldDOB          Field = "dob"
	FieldGender       Field = "gender"
	FieldLocation     Field = "location"
	FieldCity         Field = "city"
	FieldCountry      Field = "country"
	FieldLink         Field = "link"
	FieldIPAddress    Field = "ip_address"
	FieldDevice       Field = "device"
	FieldTimestamp    Field = "timestamp"
	FieldBreachDate   Field = "breach_date"
	FieldFileName     Field = "file_name"
	FieldContext      Field = "context"
)

// canonicalOrder fixes the iteration order used wherever output depends on field order.
var canonicalOrder = []Field{
	FieldEmail,
	FieldUsername,
	FieldPassword,
	FieldPasswordHash,
	FieldPhone,
	FieldName,
	FieldFirstName,
	FieldLastName,
	FieldDOB,
	FieldGender,
	FieldLocation,
	FieldCity,
	FieldCountry,
	FieldLink,
	FieldIPAddress,
	FieldDevice,
	FieldTimestamp,
	FieldBreachDate,
	FieldFileName,
	FieldContext,
}

var knownFields = func() map[Field]int {
	m := make(map[Field]int, len(canonicalOrder))
	for i, f := range canonicalOrder {
		m[f] = i
	}
	return m
}()

// Fields returns every known semantic key in canonical order.
func Fields() []Field {
	out := make([]Field, len(canonicalOrder))
	copy(out, canonicalOrder)
	return out
}

// Known reports whether f is a recognized semantic key.
func (f Field) Known() bool {
	_, ok := knownFields[f]
	return ok
}

// Rank is the position of f in canonical order; unknown keys sort last.
func (f Field) Rank() int {
	if r, ok := knownFields[f]; ok {
		return r
	}
	return len(canonicalOrder)
}
