package wire

// Field numbers. They are int32 so opaque variants can carry them directly.
const (
	fieldPacketID              = 1
	fieldPacketFrom            = 2
	fieldPacketRequest         = 3
	fieldPacketResponse        = 4
	fieldPacketEvent           = 5
	fieldPacketPush            = 6
	fieldPacketAcknowledgement = 7

	fieldRequestConnect = 1
	// Request variants 2..15 are kept opaque.
	fieldRequestOpaqueMax = 15

	fieldConnectUser          = 1
	fieldConnectPassword      = 2
	fieldConnectClientVersion = 3

	fieldResponseType              = 1
	fieldResponseRespondingTo      = 2
	fieldResponseConnect           = 3
	fieldResponseLeaderboardScores = 4
	fieldResponseLoadedSong        = 5
	fieldResponseModal             = 6
	fieldResponseModifyQualifier   = 7
	fieldResponseImagePreloaded    = 8

	fieldConnectResponseState         = 1
	fieldConnectResponseMessage       = 2
	fieldConnectResponseServerVersion = 3

	fieldStateServerSettings = 1
	fieldStateUsers          = 2
	fieldStateMatches        = 3
	fieldStateKnownHosts     = 5

	fieldSettingsServerName           = 1
	fieldSettingsPassword             = 2
	fieldSettingsEnableTeams          = 3
	fieldSettingsTeams                = 4
	fieldSettingsScoreUpdateFrequency = 5

	fieldUserGUID              = 1
	fieldUserName              = 2
	fieldUserUserID            = 3
	fieldUserClientType        = 4
	fieldUserTeam              = 5
	fieldUserPlayState         = 6
	fieldUserDownloadState     = 7
	fieldUserModList           = 8
	fieldUserStreamDelayMs     = 10
	fieldUserStreamSyncStartMs = 11

	fieldTeamID   = 1
	fieldTeamName = 2

	fieldMatchGUID               = 1
	fieldMatchAssociatedUsers    = 2
	fieldMatchLeader             = 3
	fieldMatchSelectedLevel      = 4
	fieldMatchSelectedDifficulty = 6

	fieldLevelID     = 1
	fieldLevelName   = 2
	fieldLevelLoaded = 4

	fieldServerName          = 1
	fieldServerAddress       = 2
	fieldServerPort          = 3
	fieldServerWebsocketPort = 4

	fieldEventUserAdded        = 1
	fieldEventUserUpdated      = 2
	fieldEventUserLeft         = 3
	fieldEventMatchCreated     = 4
	fieldEventMatchUpdated     = 5
	fieldEventMatchDeleted     = 6
	fieldEventQualifierCreated = 7
	fieldEventQualifierUpdated = 8
	fieldEventQualifierDeleted = 9
	fieldEventHostAdded        = 10
	fieldEventHostDeleted      = 11

	// Every event variant wraps its entity in field 1.
	fieldEventEntity = 1

	fieldPushLeaderboardScore = 1
	fieldPushRealtimeScore    = 2
	fieldPushSongFinished     = 3

	fieldScoreUserGUID              = 1
	fieldScoreScore                 = 2
	fieldScoreScoreWithModifiers    = 3
	fieldScoreMaxScore              = 4
	fieldScoreMaxScoreWithModifiers = 5
	fieldScoreCombo                 = 6
	fieldScorePlayerHealth          = 7
	fieldScoreAccuracy              = 8
	fieldScoreSongPosition          = 9
	fieldScoreNotesMissed           = 10
	fieldScoreBadCuts               = 11
	fieldScoreBombHits              = 12
	fieldScoreWallHits              = 13
	fieldScoreMaxCombo              = 14
	fieldScoreLeftHand              = 15
	fieldScoreRightHand             = 16

	fieldHandHit    = 1
	fieldHandMiss   = 2
	fieldHandBadCut = 3

	fieldSongFinishedPlayer = 1
	fieldSongFinishedType   = 3
	fieldSongFinishedScore  = 4

	fieldAckPacketID = 1
	fieldAckType     = 2
)
