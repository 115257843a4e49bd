// Package webgraph defines the edge record schema, URL model, and the
// collaborator interfaces shared by the builder, the post-processor and the
// index connectors.
package webgraph

// Field is the logical name of one edge record attribute. The storage alias
// under which a field is written is decided by the field selection policy.
type Field string

// Identity and bookkeeping fields.
const (
	FieldID           Field = "id"
	FieldLoadDate     Field = "load_date_dt"
	FieldLastModified Field = "last_modified"
	FieldCollection   Field = "collection_sxt"
	FieldProcess      Field = "process_sxt"
)

// Source endpoint fields.
const (
	FieldSourceID               Field = "source_id_s"
	FieldSourceProtocol         Field = "source_protocol_s"
	FieldSourceURLStub          Field = "source_urlstub_s"
	FieldSourceChars            Field = "source_chars_i"
	FieldSourceHost             Field = "source_host_s"
	FieldSourceHostID           Field = "source_host_id_s"
	FieldSourceHostDNC          Field = "source_host_dnc_s"
	FieldSourceHostOrganization Field = "source_host_organization_s"
	FieldSourceHostOrgDNC       Field = "source_host_organizationdnc_s"
	FieldSourceHostSubdomain    Field = "source_host_subdomain_s"
	FieldSourceFileExt          Field = "source_file_ext_s"
	FieldSourcePath             Field = "source_path_s"
	FieldSourcePathFoldersCount Field = "source_path_folders_count_i"
	FieldSourcePathFolders      Field = "source_path_folders_sxt"
	FieldSourceParameterCount   Field = "source_parameter_count_i"
	FieldSourceParameterKey     Field = "source_parameter_key_sxt"
	FieldSourceParameterValue   Field = "source_parameter_value_sxt"
	FieldSourceClickDepth       Field = "source_clickdepth_i"
)

// Target endpoint fields.
const (
	FieldTargetID               Field = "target_id_s"
	FieldTargetProtocol         Field = "target_protocol_s"
	FieldTargetURLStub          Field = "target_urlstub_s"
	FieldTargetChars            Field = "target_chars_i"
	FieldTargetHost             Field = "target_host_s"
	FieldTargetHostID           Field = "target_host_id_s"
	FieldTargetHostDNC          Field = "target_host_dnc_s"
	FieldTargetHostOrganization Field = "target_host_organization_s"
	FieldTargetHostOrgDNC       Field = "target_host_organizationdnc_s"
	FieldTargetHostSubdomain    Field = "target_host_subdomain_s"
	FieldTargetFileExt          Field = "target_file_ext_s"
	FieldTargetPath             Field = "target_path_s"
	FieldTargetPathFoldersCount Field = "target_path_folders_count_i"
	FieldTargetPathFolders      Field = "target_path_folders_sxt"
	FieldTargetParameterCount   Field = "target_parameter_count_i"
	FieldTargetParameterKey     Field = "target_parameter_key_sxt"
	FieldTargetParameterValue   Field = "target_parameter_value_sxt"
	FieldTargetClickDepth       Field = "target_clickdepth_i"
)

// Link metadata fields, stored on the target side of the edge.
const (
	FieldTargetInbound           Field = "target_inbound_b"
	FieldTargetName              Field = "target_name_t"
	FieldTargetRel               Field = "target_rel_s"
	FieldTargetRelFlags          Field = "target_relflags_i"
	FieldTargetLinkText          Field = "target_linktext_t"
	FieldTargetLinkTextCharCount Field = "target_linktext_charcount_i"
	FieldTargetLinkTextWordCount Field = "target_linktext_wordcount_i"
	FieldTargetAlt               Field = "target_alt_t"
	FieldTargetAltCharCount      Field = "target_alt_charcount_i"
	FieldTargetAltWordCount      Field = "target_alt_wordcount_i"
)

// ClickDepthPending is stored while a click depth awaits post-processing.
const ClickDepthPending = 999

// ProcessType names an attribute whose stored value is provisional.
type ProcessType string

// ProcessClickDepth is currently the only defined post-processing task.
const ProcessClickDepth ProcessType = "CLICKDEPTH"

// Endpoint groups the fields describing one side of an edge so source and
// target can be populated and reconciled by the same code.
type Endpoint struct {
	Name             string
	ID               Field
	Protocol         Field
	URLStub          Field
	Chars            Field
	Host             Field
	HostID           Field
	HostDNC          Field
	HostOrganization Field
	HostOrgDNC       Field
	HostSubdomain    Field
	FileExt          Field
	Path             Field
	FoldersCount     Field
	Folders          Field
	ParameterCount   Field
	ParameterKey     Field
	ParameterValue   Field
	ClickDepth       Field
}

// Source describes the linking page.
var Source = Endpoint{
	Name:             "source",
	ID:               FieldSourceID,
	Protocol:         FieldSourceProtocol,
	URLStub:          FieldSourceURLStub,
	Chars:            FieldSourceChars,
	Host:             FieldSourceHost,
	HostID:           FieldSourceHostID,
	HostDNC:          FieldSourceHostDNC,
	HostOrganization: FieldSourceHostOrganization,
	HostOrgDNC:       FieldSourceHostOrgDNC,
	HostSubdomain:    FieldSourceHostSubdomain,
	FileExt:          FieldSourceFileExt,
	Path:             FieldSourcePath,
	FoldersCount:     FieldSourcePathFoldersCount,
	Folders:          FieldSourcePathFolders,
	ParameterCount:   FieldSourceParameterCount,
	ParameterKey:     FieldSourceParameterKey,
	ParameterValue:   FieldSourceParameterValue,
	ClickDepth:       FieldSourceClickDepth,
}

// Target describes the linked page.
var Target = Endpoint{
	Name:             "target",
	ID:               FieldTargetID,
	Protocol:         FieldTargetProtocol,
	URLStub:          FieldTargetURLStub,
	Chars:            FieldTargetChars,
	Host:             FieldTargetHost,
	HostID:           FieldTargetHostID,
	HostDNC:          FieldTargetHostDNC,
	HostOrganization: FieldTargetHostOrganization,
	HostOrgDNC:       FieldTargetHostOrgDNC,
	HostSubdomain:    FieldTargetHostSubdomain,
	FileExt:          FieldTargetFileExt,
	Path:             FieldTargetPath,
	FoldersCount:     FieldTargetPathFoldersCount,
	Folders:          FieldTargetPathFolders,
	ParameterCount:   FieldTargetParameterCount,
	ParameterKey:     FieldTargetParameterKey,
	ParameterValue:   FieldTargetParameterValue,
	ClickDepth:       FieldTargetClickDepth,
}

// AllFields lists every schema field in declaration order. Consumers outside
// the indexer depend on this name set staying stable.
var AllFields = []Field{
	FieldID, FieldLoadDate, FieldLastModified, FieldCollection, FieldProcess,

	FieldSourceID, FieldSourceProtocol, FieldSourceURLStub, FieldSourceChars,
	FieldSourceHost, FieldSourceHostID, FieldSourceHostDNC, FieldSourceHostOrganization,
	FieldSourceHostOrgDNC, FieldSourceHostSubdomain, FieldSourceFileExt, FieldSourcePath,
	FieldSourcePathFoldersCount, FieldSourcePathFolders, FieldSourceParameterCount,
	FieldSourceParameterKey, FieldSourceParameterValue, FieldSourceClickDepth,

	FieldTargetInbound, FieldTargetName, FieldTargetRel, FieldTargetRelFlags,
	FieldTargetLinkText, FieldTargetLinkTextCharCount, FieldTargetLinkTextWordCount,
	FieldTargetAlt, FieldTargetAltCharCount, FieldTargetAltWordCount,

	FieldTargetID, FieldTargetProtocol, FieldTargetURLStub, FieldTargetChars,
	FieldTargetHost, FieldTargetHostID, FieldTargetHostDNC, FieldTargetHostOrganization,
	FieldTargetHostOrgDNC, FieldTargetHostSubdomain, FieldTargetFileExt, FieldTargetPath,
	FieldTargetPathFoldersCount, FieldTargetPathFolders, FieldTargetParameterCount,
	FieldTargetParameterKey, FieldTargetParameterValue, FieldTargetClickDepth,
}

var knownFields = func() map[Field]struct{} {
	out := make(map[Field]struct{}, len(AllFields))
	for _, f := range AllFields {
		out[f] = struct{}{}
	}
	return out
}()

// IsKnownField reports whether name is part of the schema.
func IsKnownField(name string) bool {
	_, ok := knownFields[Field(name)]
	return ok
}
