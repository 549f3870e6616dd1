package dlp

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"time"

	"cloudsamples/internal/apperrors"

	"cloud.google.com/go/dlp/apiv2/dlppb"
)

// Defaults for the table de-identification sample.
var (
	DefaultDeidentifyFields    = []string{"PATIENT", "FACTOID"}
	DefaultDeidentifyInfoTypes = []string{"PERSON_NAME"}
)

// TableRequest describes a CSV file to de-identify.
type TableRequest struct {
	ProjectID  string
	InputPath  string
	OutputPath string
	Fields     []string // columns to transform (default: PATIENT, FACTOID)
	InfoTypes  []string // info types to replace (default: PERSON_NAME)
}

// TableResult reports where the de-identified table was written.
type TableResult struct {
	OutputPath string
	Rows       int
}

// DeidentifyTable replaces findings of the requested info types in the
// selected columns with the info type name and writes the resulting table as
// CSV with the input header.
func (s *Service) DeidentifyTable(ctx context.Context, req TableRequest) (*TableResult, error) {
	applyTableDefaults(&req)
	if req.ProjectID == "" {
		return nil, apperrors.Validation("project", "calling project ID is required")
	}

	input, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, apperrors.Internal("dlp.readCSV", err)
	}
	table, err := ReadTable(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	logger := slog.With("input", req.InputPath, "rows", len(table.GetRows()))

	start := time.Now()
	resp, err := s.client.DeidentifyContent(ctx, BuildDeidentifyTableRequest(ParentName(req.ProjectID), table, req.Fields, req.InfoTypes))
	observe(ctx, s.metrics, "DeidentifyContent", start, err)
	if err != nil {
		logger.Error("De-identify request failed", "error", err)
		return nil, apperrors.Remote("dlp.DeidentifyContent", err)
	}

	out := &dlppb.Table{
		Headers: table.GetHeaders(),
		Rows:    resp.GetItem().GetTable().GetRows(),
	}

	var buf bytes.Buffer
	if err := WriteTable(&buf, out); err != nil {
		return nil, apperrors.Internal("dlp.writeCSV", err)
	}
	if err := os.WriteFile(req.OutputPath, buf.Bytes(), 0o644); err != nil {
		return nil, apperrors.Internal("dlp.writeCSV", err)
	}

	logger.Debug("Table de-identified", "output", req.OutputPath)
	return &TableResult{OutputPath: req.OutputPath, Rows: len(out.Rows)}, nil
}

// BuildDeidentifyTableRequest builds a request replacing findings of infoTypes
// in the given fields with the info type name.
func BuildDeidentifyTableRequest(parent string, table *dlppb.Table, fields, infoTypes []string) *dlppb.DeidentifyContentRequest {
	fieldIDs := make([]*dlppb.FieldId, 0, len(fields))
	for _, f := range fields {
		fieldIDs = append(fieldIDs, &dlppb.FieldId{Name: f})
	}
	types := make([]*dlppb.InfoType, 0, len(infoTypes))
	for _, it := range infoTypes {
		types = append(types, &dlppb.InfoType{Name: it})
	}

	replaceWithInfoType := &dlppb.PrimitiveTransformation{
		Transformation: &dlppb.PrimitiveTransformation_ReplaceWithInfoTypeConfig{
			ReplaceWithInfoTypeConfig: &dlppb.ReplaceWithInfoTypeConfig{},
		},
	}

	return &dlppb.DeidentifyContentRequest{
		Parent: parent,
		DeidentifyConfig: &dlppb.DeidentifyConfig{
			Transformation: &dlppb.DeidentifyConfig_RecordTransformations{
				RecordTransformations: &dlppb.RecordTransformations{
					FieldTransformations: []*dlppb.FieldTransformation{{
						Fields: fieldIDs,
						Transformation: &dlppb.FieldTransformation_InfoTypeTransformations{
							InfoTypeTransformations: &dlppb.InfoTypeTransformations{
								Transformations: []*dlppb.InfoTypeTransformations_InfoTypeTransformation{{
									InfoTypes:               types,
									PrimitiveTransformation: replaceWithInfoType,
								}},
							},
						},
					}},
				},
			},
		},
		Item: &dlppb.ContentItem{
			DataItem: &dlppb.ContentItem_Table{Table: table},
		},
	}
}

func applyTableDefaults(req *TableRequest) {
	if req.InputPath == "" {
		req.InputPath = "./testdata/table1.csv"
	}
	if req.OutputPath == "" {
		req.OutputPath = "./testdata/deidentify_table_infotypes_output.csv"
	}
	if len(req.Fields) == 0 {
		req.Fields = DefaultDeidentifyFields
	}
	if len(req.InfoTypes) == 0 {
		req.InfoTypes = DefaultDeidentifyInfoTypes
	}
}
