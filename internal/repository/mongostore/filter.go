package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"
)

// FilterBuilder helps build MongoDB filters fluently
type FilterBuilder struct {
	filter bson.M
}

func NewFilter() *FilterBuilder {
	return &FilterBuilder{filter: bson.M{}}
}

// Eq adds an equality condition
func (f *FilterBuilder) Eq(field string, value any) *FilterBuilder {
	f.filter[field] = value
	return f
}

func (f *FilterBuilder) Ne(field string, value any) *FilterBuilder {
	f.filter[field] = bson.M{"$ne": value}
	return f
}

func (f *FilterBuilder) Lt(field string, value any) *FilterBuilder {
	f.filter[field] = bson.M{"$lt": value}
	return f
}

// In adds an $in condition (value in array)
func (f *FilterBuilder) In(field string, values any) *FilterBuilder {
	f.filter[field] = bson.M{"$in": values}
	return f
}

// Contains is a case-insensitive substring match for use inside Or. pattern
// must already be regex-quoted.
func Contains(field string, pattern string) bson.M {
	return bson.M{field: bson.M{"$regex": pattern, "$options": "i"}}
}

// Or combines multiple filters with OR
func (f *FilterBuilder) Or(filters ...bson.M) *FilterBuilder {
	if len(filters) > 0 {
		f.filter["$or"] = filters
	}
	return f
}

func (f *FilterBuilder) Build() bson.M {
	return f.filter
}
