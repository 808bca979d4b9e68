package mcpserver

// ClaimsFormatContract describes the claims JSON that claimline accepts.
const ClaimsFormatContract = `# Claimline Claims Format

A claims file is a single JSON object (UTF-8, optional BOM). Three sections
are read; each is optional but at least one must yield an item.

## Sections

` + "```" + `json
{
  "rxTba":      [ { "dos": "2024-01-15", "medication": "Lisinopril", "daysSupply": 30 } ],
  "rxHistory":  [ { "fillDate": "12/01/2023", "drugName": "Metformin", "days_supply": "90" } ],
  "medHistory": { "claims": [
    { "claimId": "C1", "provider": "Dr. Smith", "lines": [
      { "serviceStart": "2024-02-01", "serviceEnd": "2024-02-03", "description": "Office visit",
        "procedureCode": "99213", "chargedAmount": 150, "paidAmount": "90.10" }
    ] }
  ] }
}
` + "```" + `

- ` + "`rxTba`" + ` holds pending prescriptions, ` + "`rxHistory`" + ` filled ones. Both are arrays.
- ` + "`medHistory`" + ` is either an array of claims or an object with a ` + "`claims`" + ` array.
  Every claim needs a ` + "`lines`" + ` array; each line becomes one timeline item.
- Section locations can be changed in configuration with dotted paths (e.g. ` + "`data.pending`" + `).

## Prescription fields

1. **Date** (required): first of ` + "`dos`, `dateOfService`, `serviceDate`, `fillDate`" + `.
2. **Label**: first of ` + "`medication`, `drugName`, `displayName`" + `; otherwise "<Category> Claim <n>".
3. **Days supply**: first of ` + "`daysSupply`, `days_supply`, `dayssupply`" + `. Leading digits are
   used ("90 days" is 90). Missing or unparseable means 30. The bar ends at date + days supply.
4. Optional: ` + "`id`, `dosage`, `prescriber`, `pharmacy`, `ndc`, `quantity`, `copay`" + `.

## Service line fields

1. **Start** (required): first of ` + "`serviceStart`, `startDate`, `fromDate`, `dos`" + `.
2. **End**: first of ` + "`serviceEnd`, `endDate`, `toDate`" + `; defaults to the start.
3. **Label**: ` + "`description`" + `, then ` + "`serviceType`" + `, then the claim provider.
4. Amounts (` + "`chargedAmount`, `allowedAmount`, `paidAmount`" + `) accept numbers or strings
   such as "$1,234.50" and are shown with two decimals.

## Dates

The configured format is tried first, then YYYY-MM-DD, MM/DD/YYYY, DD-MM-YYYY,
YYYY/MM/DD and DD/MM/YYYY, then free-form parsing. Numbers are epoch milliseconds.
Ambiguous dates such as 05/06/2024 read as US (May 6).

## Errors

Records with unusable dates are skipped and reported as warnings. A file with no
usable record at all is rejected ("no claims found"); a non-object top level is
rejected as an invalid document. Missing text values display as "N/A".
`
