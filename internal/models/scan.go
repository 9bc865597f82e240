package models

// Scan identifies one segmentation volume flowing through the batch driver
type Scan struct {
	// PatientID is the patient the scan belongs to
	PatientID string

	// Name is the scan identifier, usually the filename without extensions
	Name string

	// Path is the on-disk location of the segmentation volume
	Path string

	// RunID tags the batch run that processed this scan
	RunID string
}

// BatchResult summarizes the outcome of validating one scan
type BatchResult struct {
	// Scan is the processed scan
	Scan Scan

	// Valid reports whether every validation check passed
	Valid bool

	// Warnings and Errors are the finding counts from the validation result
	Warnings int
	Errors   int

	// Cleaned reports whether cleanup modified the volume
	Cleaned bool

	// ReportPath is where the markdown report was written, if any
	ReportPath string

	// CleanedPath is where the cleaned volume was written, if any
	CleanedPath string
}
