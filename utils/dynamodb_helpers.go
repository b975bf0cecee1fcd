package utils

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ExtractString safely extracts a string from a DynamoDB attribute map
func ExtractString(item map[string]types.AttributeValue, field string) string {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberS); ok {
			return v.Value
		}
	}
	return ""
}

// ExtractInt safely extracts a number from a DynamoDB attribute map,
// returning fallback when the field is missing or not a whole number
func ExtractInt(item map[string]types.AttributeValue, field string, fallback int) int {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberN); ok {
			n, err := strconv.Atoi(v.Value)
			if err == nil {
				return n
			}
		}
	}
	return fallback
}

// StringAttr wraps a string as a DynamoDB attribute
func StringAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}
