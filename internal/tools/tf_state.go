package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StateReader downloads a Terraform state file from a bucket.
type StateReader interface {
	ReadState(ctx context.Context, bucket string) ([]byte, error)
}

type tfState struct {
	Resources []struct {
		Mode      string `json:"mode"`
		Type      string `json:"type"`
		Name      string `json:"name"`
		Instances []struct {
			Attributes map[string]interface{} `json:"attributes"`
		} `json:"instances"`
	} `json:"resources"`
}

// QueryTerraformStateTool lists resources of one type from a state file.
func QueryTerraformStateTool(states StateReader) Tool {
	return Tool{
		Name:        "QueryTerraformState",
		Description: "Use to list resources from a Terraform state file in a GCS bucket. Input must be in the format 'bucket-name/resource_type', for example 'my-tf-bucket/google_compute_instance'.",
		Execute: func(ctx context.Context, input string) (string, error) {
			bucket, resourceType, ok := strings.Cut(strings.TrimSpace(input), "/")
			bucket = strings.TrimPrefix(strings.TrimSpace(bucket), "gs://")
			resourceType = strings.TrimSpace(resourceType)
			if !ok || bucket == "" || resourceType == "" {
				return "", Fail("reading Terraform state from GCS", errors.New("input must be in the format 'bucket-name/resource_type'"))
			}

			raw, err := states.ReadState(ctx, bucket)
			if err != nil {
				return "", Fail("reading Terraform state from GCS", err)
			}
			resources, err := ResourcesOfType(raw, resourceType)
			if err != nil {
				return "", Fail("reading Terraform state from GCS", err)
			}
			if len(resources) == 0 {
				return fmt.Sprintf("No resources of type '%s' found.", resourceType), nil
			}
			out, err := indentJSON(resources)
			if err != nil {
				return "", Fail("reading Terraform state from GCS", err)
			}
			return out, nil
		},
	}
}

// ResourcesOfType returns the attributes of every managed instance of
// resourceType in a Terraform state document.
func ResourcesOfType(state []byte, resourceType string) ([]map[string]interface{}, error) {
	var st tfState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	var out []map[string]interface{}
	for _, r := range st.Resources {
		if r.Type != resourceType || r.Mode == "data" {
			continue
		}
		for _, inst := range r.Instances {
			if inst.Attributes != nil {
				out = append(out, inst.Attributes)
			}
		}
	}
	return out, nil
}
