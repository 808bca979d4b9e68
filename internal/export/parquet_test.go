package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/claimline/internal/claims"
)

func sampleDoc() *claims.TimelineDocument {
	d := func(m time.Month, day int) time.Time { return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC) }
	return &claims.TimelineDocument{
		Items: []claims.ClaimItem{
			{
				ID: "C1-1", Kind: claims.KindMedicalService, Label: "Office visit",
				Interval: claims.Interval{Start: d(time.February, 1), End: d(time.February, 3)},
				Attributes: claims.Attributes{Service: &claims.ServiceFacts{
					Provider: "Dr. Who", ProcedureCode: "99213", ChargedAmount: "150.00",
					AllowedAmount: claims.Unknown, PaidAmount: claims.Unknown,
				}},
			},
			{
				ID: "rx1", Kind: claims.KindPrescriptionPending, Label: "Drug A",
				Interval: claims.Interval{Start: d(time.January, 1), End: d(time.January, 31)},
				Attributes: claims.Attributes{Prescription: &claims.PrescriptionFacts{
					Prescriber: claims.Unknown, NDC: "00093", Copay: "5.00", DaysSupply: 30,
				}},
			},
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows("member.json", sampleDoc())
	require.Len(t, rows, 2)

	svc := rows[0]
	assert.Equal(t, "member.json", svc.Source)
	assert.Equal(t, "2024-02-01", svc.Start)
	assert.Equal(t, "2024-02-03", svc.End)
	require.NotNil(t, svc.Charged)
	assert.Equal(t, "150.00", *svc.Charged)
	assert.Nil(t, svc.Paid)
	assert.Nil(t, svc.DaysSupply)

	rx := rows[1]
	assert.Nil(t, rx.Provider)
	require.NotNil(t, rx.DaysSupply)
	assert.Equal(t, int32(30), *rx.DaysSupply)
	assert.Equal(t, "00093", *rx.Code)
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.parquet")
	w, err := NewWriter(afero.NewOsFs(), path)
	require.NoError(t, err)

	n, err := w.Write(Rows("a.json", sampleDoc()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = w.Write(Rows("b.json", sampleDoc()))
	require.NoError(t, err)
	assert.Equal(t, 4, w.Count())
	require.NoError(t, w.Close())

	got, err := parquet.ReadFile[Row](path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "b.json", got[3].Source)
	assert.Equal(t, "Drug A", got[3].Label)
	assert.Equal(t, Rows("a.json", sampleDoc())[0], got[0])
}
