package dlp

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloudsamples/internal/apperrors"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var knownNames = []string{"Charles Dickens", "Jane Austen", "Mark Twain"}

// replacePersonNames mimics the service: names found in the targeted columns
// are replaced with the info type token.
func replacePersonNames(req *dlppb.DeidentifyContentRequest) (*dlppb.DeidentifyContentResponse, error) {
	ft := req.GetDeidentifyConfig().GetRecordTransformations().GetFieldTransformations()[0]
	token := "[" + ft.GetInfoTypeTransformations().GetTransformations()[0].GetInfoTypes()[0].GetName() + "]"

	targeted := map[string]bool{}
	for _, f := range ft.GetFields() {
		targeted[f.GetName()] = true
	}

	table := req.GetItem().GetTable()
	out := &dlppb.Table{Headers: table.GetHeaders()}
	for _, row := range table.GetRows() {
		newRow := &dlppb.Table_Row{}
		for i, v := range row.GetValues() {
			cell := v.GetStringValue()
			if targeted[table.GetHeaders()[i].GetName()] {
				for _, name := range knownNames {
					cell = strings.ReplaceAll(cell, name, token)
				}
			}
			newRow.Values = append(newRow.Values, &dlppb.Value{Type: &dlppb.Value_StringValue{StringValue: cell}})
		}
		out.Rows = append(out.Rows, newRow)
	}
	return &dlppb.DeidentifyContentResponse{Item: &dlppb.ContentItem{DataItem: &dlppb.ContentItem_Table{Table: out}}}, nil
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestDeidentifyTable_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "out.csv")

	var sb strings.Builder
	sb.WriteString("PATIENT,FACTOID\n")
	const n = 5
	for i := range n {
		name := knownNames[i%len(knownNames)]
		fmt.Fprintf(&sb, "%s,\"Fact %d, told by %s\"\n", name, i, name)
	}
	sb.WriteString("Nobody,Nothing to see\n")
	require.NoError(t, os.WriteFile(input, []byte(sb.String()), 0o600))

	client := &fakeDLP{deidentify: replacePersonNames}
	res, err := NewService(client, nil).DeidentifyTable(t.Context(), TableRequest{
		ProjectID:  "my-project",
		InputPath:  input,
		OutputPath: output,
	})
	require.NoError(t, err)
	require.Equal(t, output, res.OutputPath)
	require.Equal(t, n+1, res.Rows)

	in := readCSV(t, input)
	out := readCSV(t, output)
	require.Equal(t, in[0], out[0], "header is preserved")
	require.Len(t, out, len(in), "row count is preserved")
	for r := 1; r < len(in); r++ {
		for c := range in[r] {
			if out[r][c] != in[r][c] {
				require.Contains(t, out[r][c], "[PERSON_NAME]")
			}
		}
	}
	require.Equal(t, "Nobody", out[n+1][0])

	req := client.deidentifyReq
	require.Equal(t, "projects/my-project/locations/global", req.GetParent())
	ft := req.GetDeidentifyConfig().GetRecordTransformations().GetFieldTransformations()
	require.Len(t, ft, 1)
	require.Equal(t, []string{"PATIENT", "FACTOID"}, []string{ft[0].GetFields()[0].GetName(), ft[0].GetFields()[1].GetName()})
	itt := ft[0].GetInfoTypeTransformations().GetTransformations()[0]
	require.NotNil(t, itt.GetPrimitiveTransformation().GetReplaceWithInfoTypeConfig())
}

func TestDeidentifyTable_SampleData(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "out.csv")
	res, err := NewService(&fakeDLP{deidentify: replacePersonNames}, nil).DeidentifyTable(t.Context(), TableRequest{
		ProjectID:  "p",
		InputPath:  "testdata/table1.csv",
		OutputPath: output,
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)

	out := readCSV(t, output)
	require.Equal(t, []string{"AGE", "PATIENT", "HAPPINESS SCORE", "FACTOID"}, out[0])
	require.Equal(t, []string{"22", "[PERSON_NAME]", "21", "There are 14 kisses in [PERSON_NAME]'s novels."}, out[2])
}

func TestDeidentifyTable_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	ragged := filepath.Join(dir, "ragged.csv")
	require.NoError(t, os.WriteFile(ragged, []byte("A,B\n1\n"), 0o600))

	remoteErr := func(*dlppb.DeidentifyContentRequest) (*dlppb.DeidentifyContentResponse, error) {
		return nil, status.Error(codes.InvalidArgument, "bad info type")
	}

	tests := []struct {
		name     string
		req      TableRequest
		sentinel error
	}{
		{"missing project", TableRequest{InputPath: "testdata/table1.csv"}, apperrors.ErrValidation},
		{"missing input", TableRequest{ProjectID: "p", InputPath: filepath.Join(dir, "nope.csv")}, apperrors.ErrInternal},
		{"empty csv", TableRequest{ProjectID: "p", InputPath: empty}, apperrors.ErrValidation},
		{"ragged csv", TableRequest{ProjectID: "p", InputPath: ragged}, apperrors.ErrValidation},
		{"remote invalid argument", TableRequest{ProjectID: "p", InputPath: "testdata/table1.csv", OutputPath: filepath.Join(dir, "o.csv")}, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewService(&fakeDLP{deidentify: remoteErr}, nil).DeidentifyTable(t.Context(), tt.req)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestReadWriteTable(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader("A,B\n1,\"x,y\"\n"))
	require.NoError(t, err)
	require.Len(t, table.GetHeaders(), 2)
	require.Len(t, table.GetRows(), 1)
	require.Equal(t, "x,y", table.GetRows()[0].GetValues()[1].GetStringValue())

	table.Rows = append(table.Rows, &dlppb.Table_Row{Values: []*dlppb.Value{
		{Type: &dlppb.Value_IntegerValue{IntegerValue: 7}},
		{Type: &dlppb.Value_BooleanValue{BooleanValue: true}},
	}})

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table))
	require.Equal(t, "A,B\n1,\"x,y\"\n7,true\n", buf.String())
}
