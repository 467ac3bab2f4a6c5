// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ImportSourceArchiver marks objects imported from the GitHub archiver
// rather than scraped from the OBEX site.
const ImportSourceArchiver = "github_archiver"

// ObexURLs holds the links recorded for an OBEX object.
type ObexURLs struct {
	ObexPage       string `json:"obex_page" yaml:"obex_page"`
	DownloadDirect string `json:"download_direct" yaml:"download_direct"`
}

// ObexImportMetadata records how an object entered the knowledge base.
type ObexImportMetadata struct {
	ImportSource            string `json:"import_source,omitempty" yaml:"import_source,omitempty"`
	LastAuthorConsolidation string `json:"last_author_consolidation,omitempty" yaml:"last_author_consolidation,omitempty"`
	OriginalArchiverName    string `json:"original_archiver_name,omitempty" yaml:"original_archiver_name,omitempty"`
}

// ObexMetadata is the object_metadata block of an OBEX record.
type ObexMetadata struct {
	ObjectID string             `json:"object_id" yaml:"object_id"`
	Title    string             `json:"title" yaml:"title"`
	Author   string             `json:"author" yaml:"author"`
	URLs     ObexURLs           `json:"urls" yaml:"urls"`
	Metadata ObexImportMetadata `json:"metadata" yaml:"metadata"`
}

// ObexObject is the read view of an OBEX object record. Writers edit the
// YAML document directly so unknown fields survive.
type ObexObject struct {
	ObjectMetadata ObexMetadata `json:"object_metadata" yaml:"object_metadata"`
}
