package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	assert.Equal(t, "+989123456789", NormalizePhoneNumber(" +98 912-345-6789 "))
	assert.Equal(t, "02112345678", NormalizePhoneNumber("(021) 1234.5678"))
	assert.Equal(t, "+989123456789", NormalizePhoneNumber("+989123456789"))

	// a plus sign not in the leading position is kept for validation to reject
	assert.Equal(t, "98+912", NormalizePhoneNumber("98+912"))
}

func TestValidatePhoneNumber(t *testing.T) {
	t.Run("valid numbers", func(t *testing.T) {
		normalized, err := ValidatePhoneNumber("+98 912 345 6789")
		require.NoError(t, err)
		assert.Equal(t, "+989123456789", normalized)

		normalized, err = ValidatePhoneNumber("1234567")
		require.NoError(t, err)
		assert.Equal(t, "1234567", normalized)
	})

	t.Run("invalid numbers", func(t *testing.T) {
		cases := []string{
			"",
			"   ",
			"+",
			"123456",           // too short
			"1234567890123456", // too long
			"98a1234567",       // letter
			"98+9123456",       // misplaced plus
		}
		for _, raw := range cases {
			_, err := ValidatePhoneNumber(raw)
			assert.Error(t, err, "expected %q to be rejected", raw)
		}
	})
}

func TestPreparePhoneList(t *testing.T) {
	valid, invalid, duplicates := PreparePhoneList([]string{
		"+98 912 345 6789",
		"+989123456789", // duplicate after normalization
		"bogus",
		"02112345678",
		"021 1234 5678", // duplicate after normalization
	})

	require.Len(t, valid, 2)
	assert.Equal(t, []string{"+989123456789", "02112345678"}, valid)
	require.Len(t, invalid, 1)
	assert.Equal(t, "bogus", invalid[0].Number)
	assert.NotEmpty(t, invalid[0].Reason)
	assert.Equal(t, 2, duplicates)
}

func TestPreparePhoneListAllInvalid(t *testing.T) {
	valid, invalid, duplicates := PreparePhoneList([]string{"", "abc"})
	assert.Empty(t, valid)
	assert.Len(t, invalid, 2)
	assert.Zero(t, duplicates)
}

func TestPartitionNumbers(t *testing.T) {
	numbers := make([]string, 250)
	for i := range numbers {
		numbers[i] = "+989123456789"
	}

	batches := PartitionNumbers(numbers, 100)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)

	assert.Nil(t, PartitionNumbers(nil, 100))
	assert.Nil(t, PartitionNumbers(numbers, 0))

	single := PartitionNumbers(numbers[:10], 100)
	require.Len(t, single, 1)
	assert.Len(t, single[0], 10)
}
