package domainerrors

// Numeric application codes. Ranges: 1xxx missing field, 2xxx invalid field,
// 4xxx auth, 5xxx lookup, 6xxx internal, 7xxx store, 8xxx remote.
const (
	AppMissingID                    = 1000
	AppMissingEmail                 = 1001
	AppMissingCertificateBase64     = 1002
	AppMissingSSN                   = 1003
	AppMissingLicense               = 1004
	AppMissingFirstName             = 1005
	AppMissingLastName              = 1006
	AppMissingBirthDate             = 1007
	AppMissingResidency             = 1008
	AppMissingIP                    = 1009
	AppMissingStatus                = 1010
	AppMissingReason                = 1011
	AppMissingAnalystApproval       = 1012
	AppMissingAnalystTransactionID  = 1013
	AppMissingAnalystInternalStatus = 1014
	AppMissingDecision              = 1015
	AppMissingAnalystID             = 1016
	AppMissingAnalystFullname       = 1017
	AppMissingLanguage              = 1018

	AppInvalidTransactionID   = 2000
	AppInvalidEmail           = 2001
	AppInvalidSSN             = 2003
	AppInvalidLicense         = 2004
	AppInvalidFirstName       = 2005
	AppInvalidBirthDate       = 2006
	AppInvalidResidency       = 2007
	AppInvalidIP              = 2008
	AppInvalidReason          = 2009
	AppInvalidCertificate     = 2010
	AppInvalidMiddleName      = 2011
	AppInvalidLastName        = 2012
	AppInvalidMotherLastName  = 2013
	AppNotOldEnough           = 2014
	AppInvalidApprovalDate    = 2015
	AppInvalidDecision        = 2016
	AppInvalidAnalystID       = 2017
	AppInvalidAnalystFullname = 2018
	AppInvalidLanguage        = 2019
	AppInvalidParameters      = 2999

	AppInvalidCredentials = 4000
	AppAccessDenied       = 4500

	AppResourceNotFound = 5000
	AppItemNotFound     = 5001

	AppInternal              = 6000
	AppMissingConfiguration  = 6002
	AppInvalidConfiguration  = 6003
	AppIncorrectEmailParams  = 6004
	AppInvalidNonJSONRecord  = 6006
	AppQueueUnavailable      = 7000
	AppStoreUnavailable      = 7001
	AppRemoteUnavailable     = 8000
	AppRemoteServiceRejected = 8001
)
