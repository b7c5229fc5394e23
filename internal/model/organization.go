package model

// Well-known keys in a directory record.
const (
	FieldName            = "OrganizationName"
	FieldType            = "OrganizationType"
	FieldStateOrProvince = "OrganizationStateOrProvince"
	FieldCountry         = "OrganizationCountry"
)

// UnknownCategory is substituted for absent or empty categorical values when
// aggregating.
const UnknownCategory = "Unknown"

// Organization is one record of the remote directory. The shape is owned by
// the remote source, so the record is kept as an open mapping and every key is
// passed through unmodified. Records must not be mutated once published in a
// Snapshot.
type Organization map[string]any

// Field returns the string value stored under key. It reports false when the
// key is absent, null, or holds a non-string value.
func (o Organization) Field(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Name returns the organization name.
func (o Organization) Name() (string, bool) { return o.Field(FieldName) }

// Type returns the organization category, e.g. "MLS" or "Association".
func (o Organization) Type() (string, bool) { return o.Field(FieldType) }

// StateOrProvince returns the organization's state or province.
func (o Organization) StateOrProvince() (string, bool) { return o.Field(FieldStateOrProvince) }

// Country returns the organization's country.
func (o Organization) Country() (string, bool) { return o.Field(FieldCountry) }

// Category returns the value under key for aggregation, substituting
// UnknownCategory for absent or empty values.
func (o Organization) Category(key string) string {
	if v, ok := o.Field(key); ok && v != "" {
		return v
	}
	return UnknownCategory
}
