package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productForm struct {
	Name     string `json:"name" validate:"required,notblank,max=10"`
	Category string `json:"category" validate:"oneof=mugs shirts"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
	Stock    int    `json:"stock" validate:"gte=0"`
}

func validForm() productForm {
	return productForm{Name: "Mug", Category: "mugs", Stock: 3}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validForm()))
}

func TestValidate_FieldMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*productForm)
		field  string
		want   string
	}{
		{"required", func(f *productForm) { f.Name = "" }, "name", "is required"},
		{"blank", func(f *productForm) { f.Name = "   " }, "name", "must not be blank"},
		{"too long", func(f *productForm) { f.Name = "a very long name" }, "name", "must be at most 10 characters"},
		{"not in set", func(f *productForm) { f.Category = "hats" }, "category", "must be one of: mugs shirts"},
		{"bad url", func(f *productForm) { f.ImageURL = "not a url" }, "image_url", "must be a valid URL"},
		{"negative", func(f *productForm) { f.Stock = -1 }, "stock", "must be greater than or equal to 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			fields := fieldsOf(t, Validate(f))

			assert.Len(t, fields, 1)
			assert.Equal(t, tt.want, fields[tt.field])
		})
	}
}

func TestValidate_NotBlankIgnoresNonStrings(t *testing.T) {
	type counter struct {
		N int `json:"n" validate:"notblank"`
	}
	assert.NoError(t, Validate(counter{}))
}

func TestValidationError_Error(t *testing.T) {
	f := validForm()
	f.Name = ""
	f.Stock = -2

	err := Validate(f)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name' is required")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("plain string")

	require.Error(t, err)
	assert.NotErrorAs(t, err, new(*ValidationError))
}
