// Package oxd ingests and exports OpenXD project archives.
//
// An archive is a tar stream wrapped in a single compression filter. It holds
// exactly one structural document (the entry with the .oxd extension) and any
// number of flat image assets. Import moves every asset into a ContentStore,
// rewrites the document's asset references from archive paths to storage keys
// and persists the result through a Repository. Export is the inverse.
//
// Documents are generic over the identifier domain of their asset references:
// Document[ArchivePath] while inside an archive, Document[StorageKey] once
// persisted. Rewrite is the only way to move a document between domains.
//
// Storage backends live under storage/ and document stores under repo/.
package oxd
